// Package tier classifies cumulative control points into control tiers.
package tier

// Tier is one of the five point-threshold bands a control record can
// hold, Bronze through Diamond.
type Tier struct {
	Key        string
	Name       string
	Color      string
	Multiplier float64
	Min        int64
	Max        int64
}

// The five contiguous, non-overlapping bands. MaxInt sentinel keeps the
// Diamond band open-ended.
var (
	Bronze   = Tier{Key: "BRONZE", Name: "Bronze", Color: "#CD7F32", Multiplier: 1.0, Min: 0, Max: 99}
	Silver   = Tier{Key: "SILVER", Name: "Silver", Color: "#C0C0C0", Multiplier: 1.2, Min: 100, Max: 249}
	Gold     = Tier{Key: "GOLD", Name: "Gold", Color: "#FFD700", Multiplier: 1.5, Min: 250, Max: 499}
	Platinum = Tier{Key: "PLATINUM", Name: "Platinum", Color: "#E5E4E2", Multiplier: 2.0, Min: 500, Max: 999}
	Diamond  = Tier{Key: "DIAMOND", Name: "Diamond", Color: "#B9F2FF", Multiplier: 3.0, Min: 1000, Max: 1<<63 - 1}
)

// All lists the tiers in ascending point order.
var All = []Tier{Bronze, Silver, Gold, Platinum, Diamond}

// Classify maps a cumulative point total to its tier. Total and pure:
// negative totals fall back to Bronze.
func Classify(points int64) Tier {
	for _, t := range All {
		if points >= t.Min && points <= t.Max {
			return t
		}
	}
	return Bronze
}

// ByKey returns the tier with the given key, defaulting to Bronze for
// unknown keys.
func ByKey(key string) Tier {
	for _, t := range All {
		if t.Key == key {
			return t
		}
	}
	return Bronze
}
