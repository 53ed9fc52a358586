package models

import "fmt"

// Severity tiers produced by the resource calculator.
const (
	SeverityVerySmall = "Very Small"
	SeveritySmall     = "Small"
	SeverityModerate  = "Moderate"
	SeverityLarge     = "Large"
)

// Countable resource categories, in ledger order.
const (
	CategoryFirefighters = "firefighters"
	CategoryFiretrucks   = "firetrucks"
	CategoryHelicopters  = "helicopters"
	CategoryCommanders   = "commanders"
)

// ResourceCount holds one integer per countable category.
type ResourceCount struct {
	Firefighters int `json:"firefighters" dynamodbav:"firefighters" binding:"gte=0"`
	Firetrucks   int `json:"firetrucks" dynamodbav:"firetrucks" binding:"gte=0"`
	Helicopters  int `json:"helicopters" dynamodbav:"helicopters" binding:"gte=0"`
	Commanders   int `json:"commanders" dynamodbav:"commanders" binding:"gte=0"`
}

// PerCategory returns the counts keyed by category name.
func (c ResourceCount) PerCategory() map[string]int {
	return map[string]int{
		CategoryFirefighters: c.Firefighters,
		CategoryFiretrucks:   c.Firetrucks,
		CategoryHelicopters:  c.Helicopters,
		CategoryCommanders:   c.Commanders,
	}
}

// Plus returns the per-category sum of c and o.
func (c ResourceCount) Plus(o ResourceCount) ResourceCount {
	return ResourceCount{
		Firefighters: c.Firefighters + o.Firefighters,
		Firetrucks:   c.Firetrucks + o.Firetrucks,
		Helicopters:  c.Helicopters + o.Helicopters,
		Commanders:   c.Commanders + o.Commanders,
	}
}

// Minus returns the per-category difference of c and o.
func (c ResourceCount) Minus(o ResourceCount) ResourceCount {
	return ResourceCount{
		Firefighters: c.Firefighters - o.Firefighters,
		Firetrucks:   c.Firetrucks - o.Firetrucks,
		Helicopters:  c.Helicopters - o.Helicopters,
		Commanders:   c.Commanders - o.Commanders,
	}
}

// NegativeCategories returns the names of categories below zero, in
// ledger order.
func (c ResourceCount) NegativeCategories() []string {
	var out []string
	for _, cat := range []struct {
		name  string
		value int
	}{
		{CategoryFirefighters, c.Firefighters},
		{CategoryFiretrucks, c.Firetrucks},
		{CategoryHelicopters, c.Helicopters},
		{CategoryCommanders, c.Commanders},
	} {
		if cat.value < 0 {
			out = append(out, cat.name)
		}
	}
	return out
}

// ClampNonNegative zeroes any negative category and returns the names
// of the categories that were clamped.
func (c ResourceCount) ClampNonNegative() (ResourceCount, []string) {
	clamped := c.NegativeCategories()
	out := c
	if out.Firefighters < 0 {
		out.Firefighters = 0
	}
	if out.Firetrucks < 0 {
		out.Firetrucks = 0
	}
	if out.Helicopters < 0 {
		out.Helicopters = 0
	}
	if out.Commanders < 0 {
		out.Commanders = 0
	}
	return out, clamped
}

// ResourceBundle is a sized request for firefighting resources:
// countable categories plus a heavy-equipment membership list.
// Equipment is checked for ownership only, never consumed.
type ResourceBundle struct {
	Firefighters   int      `json:"firefighters"`
	Firetrucks     int      `json:"firetrucks"`
	Helicopters    int      `json:"helicopters"`
	Commanders     int      `json:"commanders"`
	HeavyEquipment []string `json:"heavy_equipment,omitempty"`
}

// Counts returns the countable part of the bundle.
func (b ResourceBundle) Counts() ResourceCount {
	return ResourceCount{
		Firefighters: b.Firefighters,
		Firetrucks:   b.Firetrucks,
		Helicopters:  b.Helicopters,
		Commanders:   b.Commanders,
	}
}

// IsZero reports whether the bundle requests nothing at all.
func (b ResourceBundle) IsZero() bool {
	return b.Firefighters == 0 && b.Firetrucks == 0 &&
		b.Helicopters == 0 && b.Commanders == 0 && len(b.HeavyEquipment) == 0
}

// Validate rejects bundles with negative counts.
func (b ResourceBundle) Validate() error {
	for name, v := range b.Counts().PerCategory() {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// LongTermBundle is the sustained-response part of a sizing: daily
// crew rotation, fire stations to stand up, and heavy equipment.
type LongTermBundle struct {
	DailyFirefighters  int      `json:"daily_firefighters"`
	FireStationsNeeded int      `json:"fire_stations_needed"`
	HeavyEquipment     []string `json:"heavy_equipment,omitempty"`
}

// Sizing is the full output of the severity resource calculator.
type Sizing struct {
	FireSize  float64        `json:"fire_size"`
	Severity  string         `json:"severity"`
	Immediate ResourceBundle `json:"immediate"`
	LongTerm  LongTermBundle `json:"long_term"`
}
