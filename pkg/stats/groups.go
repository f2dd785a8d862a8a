package stats

import "sort"

// Region is a named set of segmentation labels.
type Region struct {
	Name   string
	Labels []int
}

func labelRange(from, to int) []int {
	out := make([]int, 0, to-from)
	for l := from; l < to; l++ {
		out = append(out, l)
	}
	return out
}

func concat(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var corpusCallosum = []int{251, 252, 253, 254, 255}

func cerebralCortex() []int {
	return concat(
		[]int{3, 42},           // aseg left/right cortical gm
		labelRange(1000, 1036), // aparc left
		labelRange(2000, 2036), // aparc right
	)
}

// DefaultGroups returns the FreeSurfer label groups used for tissue-level
// statistics, sorted by name.
func DefaultGroups() []Region {
	cortex := cerebralCortex()
	corticalCSF := make([]int, len(cortex))
	for i, l := range cortex {
		corticalCSF[i] = l + 15000
	}
	ventricles := []int{4, 5, 14, 15, 43, 44}

	groups := []Region{
		{"cerebral-wm", concat(
			[]int{2, 41},           // aseg left/right cerebral white matter
			labelRange(3000, 3036), // wmparc left
			labelRange(4000, 4036), // wmparc right
			[]int{5001, 5002},
			[]int{28, 60}, // ventral DC
			corpusCallosum,
			[]int{31, 63}, // choroid plexus
		)},
		{"cerebral-cortex", cortex},
		{"cerebellar-wm", []int{7, 46}},
		{"cerebellar-cortex", []int{8, 47}},
		{"csf-freesurfer", concat(ventricles, []int{24})},
		{"cortical-csf", corticalCSF},
		{"corpus-callosum", append([]int(nil), corpusCallosum...)},
		{"subcortical-gm", []int{10, 49, 11, 50, 12, 51, 13, 52, 17, 53, 18, 54, 26, 58}},
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
