package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"rentalengine/internal/domain/model"
)

type Seed struct {
	Customers []model.Customer `json:"customers"`
	Products  []model.Product  `json:"products"`
}

// LoadSeed はJSONの顧客/商品をストアに入れる
func LoadSeed(s *Store, r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, c := range seed.Customers {
		if err := s.AddCustomer(c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, p := range seed.Products {
		if err := s.AddProduct(p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	return nil
}
