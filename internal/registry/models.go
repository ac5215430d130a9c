package registry

import "fmt"

// Meta carries the fields common to every registry document.
type Meta struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (m *Meta) EntityID() string       { return m.ID }
func (m *Meta) SetEntityID(id string)  { m.ID = id }
func (m *Meta) SetCreatedAt(ts string) { m.CreatedAt = ts }

// Entity is the contract a document must satisfy to live in a Collection.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	SetCreatedAt(ts string)
	Validate() error
}

func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, pairs[i])
		}
	}
	return nil
}

// Ward is an administrative area of the municipality.
type Ward struct {
	Meta
	Name       string `json:"name"`
	Zone       string `json:"zone,omitempty"`
	Population int64  `json:"population,omitempty"`
}

func (w *Ward) Validate() error {
	return requireFields("name", w.Name)
}

// Supervisor is a field staff account responsible for one or more wards.
type Supervisor struct {
	Meta
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	WardID string `json:"wardId,omitempty"`
}

func (s *Supervisor) Validate() error {
	return requireFields("name", s.Name, "phone", s.Phone)
}

// Vehicle is a sanitation fleet vehicle.
type Vehicle struct {
	Meta
	Registration string `json:"registration"`
	Kind         string `json:"kind,omitempty"`
	WardID       string `json:"wardId,omitempty"`
	Active       bool   `json:"active"`
}

func (v *Vehicle) Validate() error {
	return requireFields("registration", v.Registration)
}

// FuelRecord logs one refuelling of a vehicle.
type FuelRecord struct {
	Meta
	VehicleID string  `json:"vehicleId"`
	Liters    float64 `json:"liters"`
	Cost      float64 `json:"cost,omitempty"`
	FilledAt  string  `json:"filledAt"`
}

func (f *FuelRecord) Validate() error {
	if err := requireFields("vehicleId", f.VehicleID, "filledAt", f.FilledAt); err != nil {
		return err
	}
	if f.Liters <= 0 {
		return fmt.Errorf("%w: liters must be positive", ErrInvalid)
	}
	return nil
}

// WasteCollection records the tonnage collected in a ward on a date.
type WasteCollection struct {
	Meta
	WardID     string  `json:"wardId"`
	Date       string  `json:"date"`
	Tons       float64 `json:"tons"`
	Segregated bool    `json:"segregated"`
}

func (c *WasteCollection) Validate() error {
	if err := requireFields("wardId", c.WardID, "date", c.Date); err != nil {
		return err
	}
	if c.Tons < 0 {
		return fmt.Errorf("%w: tons must not be negative", ErrInvalid)
	}
	return nil
}

// MachineryDefect is a supervisor-filed defect report for center machinery.
type MachineryDefect struct {
	Meta
	CenterID    string `json:"centerId"`
	Machine     string `json:"machine"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	ReportedAt  string `json:"reportedAt,omitempty"`
}

func (d *MachineryDefect) Validate() error {
	return requireFields("centerId", d.CenterID, "machine", d.Machine)
}

// WealthCenter is an MCC or MRF site whose khata stock the ledger tracks.
type WealthCenter struct {
	Meta
	Name   string `json:"name"`
	Kind   string `json:"kind"` // MCC or MRF
	WardID string `json:"wardId,omitempty"`
}

func (c *WealthCenter) Validate() error {
	if err := requireFields("name", c.Name, "kind", c.Kind); err != nil {
		return err
	}
	if c.Kind != "MCC" && c.Kind != "MRF" {
		return fmt.Errorf("%w: kind must be MCC or MRF", ErrInvalid)
	}
	return nil
}
