package retail

// Unknown is the age group of every row when the table has no age column.
const Unknown = "Unknown"

// AgeGroups are the bucket labels in ascending order.
var AgeGroups = []string{"≤24", "25-34", "35-44", "45-54", "55-64", "65+"}

// ageBins are the closed upper bounds of AgeGroups; the first bin starts at 0.
var ageBins = []int{24, 34, 44, 54, 64, 120}

// AgeGroup buckets an age into one of AgeGroups.
//
// Ages outside [0,120] land in "≤24", the bucket Clean also gives a missing
// age. Unknown and young customers are therefore reported together.
func AgeGroup(age int) string {
	if age < 0 || age > ageBins[len(ageBins)-1] {
		return AgeGroups[0]
	}
	for i, upper := range ageBins {
		if age <= upper {
			return AgeGroups[i]
		}
	}
	return AgeGroups[0]
}
