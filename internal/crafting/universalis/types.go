package universalis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// marketResponse covers both response shapes of the market endpoint: a
// single item at the top level, or several under "items" keyed by ID.
type marketResponse struct {
	itemResponse
	Items           map[string]itemResponse `json:"items"`
	UnresolvedItems []flexID                `json:"unresolvedItems"`
}

type itemResponse struct {
	ItemID       flexID            `json:"itemID"`
	WorldID      flexID            `json:"worldID"`
	WorldName    string            `json:"worldName"`
	AveragePrice float64           `json:"averagePrice"`
	Listings     []listingResponse `json:"listings"`
}

type listingResponse struct {
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int    `json:"quantity"`
	WorldID      flexID `json:"worldID"`
	WorldName    string `json:"worldName"`
	RetainerName string `json:"retainerName"`
	HQ           bool   `json:"hq"`
}

// flexID is an integer ID the service sends as a number, a numeric string,
// or not at all. Anything else reads as 0 (unknown) so one bad field does not
// discard the rest of the response; callers re-derive item IDs from map keys
// and worlds from the enclosing item.
type flexID int

func (f *flexID) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexID(n)
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(i)
	}
	return nil
}
