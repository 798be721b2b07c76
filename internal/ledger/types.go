package ledger

// Registry is the singleton marketplace record.
type Registry struct {
	// OfferingCounter is the last assigned offering id.
	OfferingCounter uint64 `json:"offering_counter"`

	// RentalCounter is the last assigned rental id.
	RentalCounter uint64 `json:"rental_counter"`

	// Fee is deducted from sale and rental proceeds before paying the seller.
	Fee Fee `json:"fee"`

	// Owner may change the fee and withdraw fees.
	Owner Identity `json:"owner"`
}

// Offering is a listed quantity of a custodied asset.
type Offering struct {
	Contract  Identity `json:"contract"`
	Amount    Amount   `json:"amount"`
	Seller    Identity `json:"seller"`
	ListPrice Coin     `json:"list_price"`
}

// Rental is a time-boxed lease of an offering's asset. Amount is a snapshot
// of the offering amount when the rental was created.
type Rental struct {
	ID         string   `json:"id"`
	OfferingID string   `json:"offering_id"`
	Renter     Identity `json:"renter"`
	StartTime  uint64   `json:"start_time"`
	EndTime    uint64   `json:"end_time"`
	Amount     Amount   `json:"amount"`
}

// Expired reports whether the rental may be ended or clawed back at now.
func (r Rental) Expired(now uint64) bool {
	return now >= r.EndTime
}

// Offer is an Offering together with its id, as returned by listing queries.
type Offer struct {
	ID        string   `json:"id"`
	Amount    Amount   `json:"amount"`
	Contract  Identity `json:"contract"`
	Seller    Identity `json:"seller"`
	ListPrice Coin     `json:"list_price"`
}

// NewOffer joins an id with its offering.
func NewOffer(id string, off Offering) Offer {
	return Offer{
		ID:        id,
		Amount:    off.Amount,
		Contract:  off.Contract,
		Seller:    off.Seller,
		ListPrice: off.ListPrice,
	}
}

// RentalInfo is a rental joined with its offering. Amount reports the
// offering's current amount rather than the rental snapshot.
type RentalInfo struct {
	ID         string   `json:"id"`
	OfferingID string   `json:"offering_id"`
	Renter     Identity `json:"renter"`
	StartTime  uint64   `json:"start_time"`
	EndTime    uint64   `json:"end_time"`
	Amount     Amount   `json:"amount"`
}

// Attribute is a key/value event emitted by a successful operation.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attr builds an Attribute.
func Attr(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}
