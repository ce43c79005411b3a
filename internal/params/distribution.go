package params

import "strconv"

// Distribution describes a parametric distribution:
//
//	dist_type: poisson
//	vars:
//	  1: {value: 2.0, value_type: float}
type Distribution struct {
	DistType string
	Vars     []any // ordered by var number; a value may be a scalar or a list
}

// Var returns the i-th (0-based) variable as a number.
func (d Distribution) Var(i int) float64 {
	if i < 0 || i >= len(d.Vars) {
		return 0
	}
	f, _ := toFloat(d.Vars[i])
	return f
}

// DistributionAt decodes the distribution at path.
func (t *Tree) DistributionAt(path string) Distribution {
	return DistributionOf(t.Sub(path))
}

// DistributionOf decodes a distribution node.
func DistributionOf(n *Tree) Distribution {
	d := Distribution{DistType: n.String("dist_type")}
	vars := n.Sub("vars")
	for _, k := range vars.SortedKeys() {
		entry := vars.fields[k]
		valueNode, ok := entry.Field("value")
		if !ok {
			d.Vars = append(d.Vars, nil)
			continue
		}
		d.Vars = append(d.Vars, convertValue(valueNode, entry.String("value_type")))
	}
	return d
}

func convertValue(n *Tree, valueType string) any {
	if n.kind == KindList {
		out := make([]any, 0, len(n.items))
		for _, item := range n.items {
			out = append(out, convertValue(item, valueType))
		}
		return out
	}
	switch valueType {
	case "int":
		f, _ := toFloat(n.value)
		return int(f)
	case "float", "":
		if f, ok := toFloat(n.value); ok {
			return f
		}
	case "bool":
		switch v := n.value.(type) {
		case bool:
			return v
		case string:
			b, _ := strconv.ParseBool(v)
			return b
		}
	}
	return n.value
}

// Bin is one weighted interval of a binned distribution.
type Bin struct {
	Key  string
	Prob float64
	Min  float64
	Max  float64
}

// Bins is a binned distribution, or a parametric one when Type is
// "distribution".
//
//	type: bins
//	bins:
//	  1: {prob: 0.5, min: 1, max: 3}
type Bins struct {
	Type         string
	Bins         []Bin
	Distribution Distribution
}

// BinsAt decodes the bins node at path.
func (t *Tree) BinsAt(path string) Bins {
	return BinsOf(t.Sub(path))
}

// BinsOf decodes a bins node.
func BinsOf(n *Tree) Bins {
	b := Bins{Type: n.String("type")}
	if b.Type == "" {
		b.Type = "bins"
	}
	bins := n.Sub("bins")
	for _, k := range bins.SortedKeys() {
		entry := bins.fields[k]
		b.Bins = append(b.Bins, Bin{
			Key:  k,
			Prob: entry.Float("prob"),
			Min:  entry.Float("min"),
			Max:  entry.Float("max"),
		})
	}
	b.Distribution = DistributionOf(n.Sub("distribution"))
	return b
}

// Empty reports whether the bins carry no probability mass and no
// distribution.
func (b Bins) Empty() bool {
	if b.Type == "distribution" {
		return b.Distribution.DistType == ""
	}
	return len(b.Bins) == 0
}
