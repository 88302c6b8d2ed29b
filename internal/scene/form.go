package scene

// Default form values. The builder seeds the layout with the same copy so a
// fresh session renders identically before and after the first update.
const (
	DefaultProductName     = "Smartphone Ultra Premium XZ200 128GB"
	DefaultProductPrice    = "R$ 1.299,90"
	DefaultOriginalPrice   = "R$ 1.899,90"
	DefaultAffiliateLink   = "bit.ly/oferta-xz200"
	DefaultBackgroundColor = "#FFFFFF"
	DefaultPrimaryColor    = "#FF4B91"
	DefaultAccentColor     = "#4CBB17"
)

// FormState is the user-editable content of a template. The updater only
// ever reads it.
type FormState struct {
	ProductName     string `json:"productName"`
	ProductPrice    string `json:"productPrice"`
	OriginalPrice   string `json:"originalPrice"`
	AffiliateLink   string `json:"affiliateLink"`
	BackgroundColor string `json:"backgroundColor"`
	PrimaryColor    string `json:"primaryColor"`
	AccentColor     string `json:"accentColor"`

	// ProductImage is the raw uploaded file, nil when absent.
	ProductImage []byte `json:"-"`
}

// DefaultFormState returns the form every editor session starts from.
func DefaultFormState() FormState {
	return FormState{
		ProductName:     DefaultProductName,
		ProductPrice:    DefaultProductPrice,
		OriginalPrice:   DefaultOriginalPrice,
		AffiliateLink:   DefaultAffiliateLink,
		BackgroundColor: DefaultBackgroundColor,
		PrimaryColor:    DefaultPrimaryColor,
		AccentColor:     DefaultAccentColor,
	}
}

// HasImage reports whether a product image is attached.
func (f FormState) HasImage() bool {
	return len(f.ProductImage) > 0
}
