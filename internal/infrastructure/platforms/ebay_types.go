package platforms

// Browse API response shapes. Only the fields the adapter reads are declared.

type ebayBrowseResponse struct {
	Total         int               `json:"total"`
	ItemSummaries []ebayItemSummary `json:"itemSummaries"`
	Refinement    *ebayRefinement   `json:"refinement"`
}

type ebayItemSummary struct {
	ItemID          string               `json:"itemId"`
	Title           string               `json:"title"`
	Price           ebayAmount           `json:"price"`
	Condition       string               `json:"condition"`
	ItemWebURL      string               `json:"itemWebUrl"`
	Image           *ebayImage           `json:"image"`
	Seller          *ebaySeller          `json:"seller"`
	ShippingOptions []ebayShippingOption `json:"shippingOptions"`
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayImage struct {
	ImageURL string `json:"imageUrl"`
}

type ebaySeller struct {
	Username string `json:"username"`
}

type ebayShippingOption struct {
	ShippingCost ebayAmount `json:"shippingCost"`
}

type ebayRefinement struct {
	AspectDistributions []ebayAspectDistribution `json:"aspectDistributions"`
}

type ebayAspectDistribution struct {
	LocalizedAspectName      string                        `json:"localizedAspectName"`
	AspectValueDistributions []ebayAspectValueDistribution `json:"aspectValueDistributions"`
}

type ebayAspectValueDistribution struct {
	LocalizedAspectValue string `json:"localizedAspectValue"`
	MatchCount           int    `json:"matchCount"`
}
