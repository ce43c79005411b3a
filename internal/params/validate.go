package params

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// binTolerance is how far bin probabilities may drift from a total of 1.
const binTolerance = 1e-6

// weightTolerance is the looser tolerance used for hand-written weights
// (assort rules, population proportions).
const weightTolerance = 1e-3

var (
	// Interactions lists the interaction names a bond type may allow.
	Interactions = []string{"sex", "injection", "pca"}

	// DrugTypes lists the known drug types.
	DrugTypes = []string{"None", "NonInj", "Inj"}

	// SexRoles lists the known sex roles.
	SexRoles = []string{"insertive", "receptive", "versatile"}

	// DistTypes lists the distributions understood by the stochastic package.
	DistTypes = []string{
		"set_value", "poisson", "randint", "uniform", "normal", "lognormal",
		"gamma", "weibull", "beta", "binomial", "negative_binomial", "choice",
	}

	prepTypes        = []string{"Oral", "Inj"}
	prepTargetModels = []string{"Allcomers", "Racial", "cdc_women", "cdc_msm", "pwid", "pwid_sex", "ssp", "ssp_sex", "top_partners"}
	vaccineTypes     = []string{"HVTN702", "RV144", "other"}
	trialChoices     = []string{"all", "eigenvector", "bridge", "random"}
	trialTreatments  = []string{"prep", "knowledge"}
	reportNames      = []string{"basicReport", "sqliteReport", "componentReport"}
	exitTypes        = []string{"age_out", "death", "drop_out"}
	enterTypes       = []string{"new_agent", "replace"}
	migrationAttrs   = []string{"name", "category"}
	exposureNames    = []string{"hiv", "knowledge", "monkeypox"}
)

// Validate checks cross-field consistency of a finalized tree. All problems
// are joined into one error.
func Validate(t *Tree) error {
	v := &validator{t: t}
	v.classes()
	v.demographics()
	v.bins("", t)
	v.distributions("", t)
	v.features()
	v.assortRules()
	v.location()
	v.timeline()
	v.outputs()
	v.enterExit()
	return errors.Join(v.errs...)
}

type validator struct {
	t    *Tree
	errs []error
}

func (v *validator) fail(path, format string, args ...any) {
	v.errs = append(v.errs, invalid(path, format, args...))
}

func (v *validator) oneOf(path string, allowed []string) {
	if val := v.t.String(path); !slices.Contains(allowed, val) {
		v.fail(path, "%q is not one of %s", val, strings.Join(allowed, ", "))
	}
}

func (v *validator) subset(path string, allowed []string) {
	for _, val := range v.t.Strings(path) {
		if !slices.Contains(allowed, val) {
			v.fail(path, "%q is not one of %s", val, strings.Join(allowed, ", "))
		}
	}
}

func (v *validator) classes() {
	t := v.t
	sexTypes := t.Sub("classes.sex_types")
	for _, st := range sexTypes.Keys() {
		for _, other := range t.Strings("classes.sex_types." + st + ".sleeps_with") {
			if !sexTypes.Has(other) {
				v.fail("classes.sex_types."+st+".sleeps_with", "unknown sex type %q", other)
			}
		}
	}
	for _, bond := range t.Sub("classes.bond_types").Keys() {
		v.subset("classes.bond_types."+bond+".acts_allowed", Interactions)
	}
	v.subset("classes.drug_types", DrugTypes)

	if t.Int("model.num_pop") > 0 {
		for _, class := range []string{"races", "sex_types", "locations"} {
			if t.Sub("classes."+class).Len() == 0 {
				v.fail("classes."+class, "at least one entry is required to create a population")
			}
		}
		v.weights("classes.locations", "ppl")
	}
}

func (v *validator) demographics() {
	t := v.t
	races := t.Sub("classes.races")
	sexTypes := t.Sub("classes.sex_types")
	drugTypes := t.Strings("classes.drug_types")
	demo := t.Sub("demographics")
	for _, race := range demo.Keys() {
		racePath := "demographics." + race
		if !races.Has(race) {
			v.fail(racePath, "unknown race")
			continue
		}
		for _, st := range t.Sub(racePath + ".sex_type").Keys() {
			stPath := racePath + ".sex_type." + st
			if !sexTypes.Has(st) {
				v.fail(stPath, "unknown sex type")
				continue
			}
			roles := t.Sub(stPath + ".sex_role.init")
			for _, role := range roles.Keys() {
				if !slices.Contains(SexRoles, role) {
					v.fail(stPath+".sex_role.init", "unknown sex role %q", role)
				}
			}
			if roles.Len() > 0 {
				v.weights(stPath+".sex_role.init", "")
			}
			for _, dt := range t.Sub(stPath + ".drug_type").Keys() {
				if !slices.Contains(drugTypes, dt) {
					v.fail(stPath+".drug_type."+dt, "unknown drug type")
				}
			}
			if t.Float(stPath+".ppl") > 0 {
				v.weights(stPath+".drug_type", "ppl")
			}
		}
		if t.Float(racePath+".ppl") > 0 {
			v.weights(racePath+".sex_type", "ppl")
		}
	}
	if t.Int("model.num_pop") > 0 && demo.Len() > 0 {
		v.weights("demographics", "ppl")
	}
}

// weights checks that the children of path (or their field) sum to one.
func (v *validator) weights(path, field string) {
	n := v.t.Sub(path)
	total := 0.0
	for _, k := range n.Keys() {
		key := k
		if field != "" {
			key = k + "." + field
		}
		total += n.Float(key)
	}
	if math.Abs(total-1) > weightTolerance {
		v.fail(path, "weights sum to %g, expected 1", total)
	}
}

// bins walks the tree checking every binned distribution.
func (v *validator) bins(path string, n *Tree) {
	if n.Kind() != KindMap {
		return
	}
	if n.String("type") == "bins" && n.Has("bins") {
		b := BinsOf(n)
		if len(b.Bins) > 0 {
			total := 0.0
			for _, bin := range b.Bins {
				total += bin.Prob
				if bin.Max < bin.Min {
					v.fail(join(path, "bins."+bin.Key), "max %g is below min %g", bin.Max, bin.Min)
				}
			}
			if math.Abs(total-1) > binTolerance {
				v.fail(join(path, "bins"), "bin probabilities sum to %g, expected 1", total)
			}
		}
	}
	for _, k := range n.Keys() {
		v.bins(join(path, k), n.fields[k])
	}
}

func (v *validator) distributions(path string, n *Tree) {
	if n.Kind() != KindMap {
		return
	}
	if dt, ok := n.Field("dist_type"); ok && n.Has("vars") {
		name := FormatScalar(dt.Scalar())
		if !slices.Contains(DistTypes, name) {
			v.fail(join(path, "dist_type"), "unknown distribution %q", name)
		}
	}
	for _, k := range n.Keys() {
		v.distributions(join(path, k), n.fields[k])
	}
}

func (v *validator) features() {
	t := v.t
	v.subset("prep.type", prepTypes)
	v.subset("prep.target_model", prepTargetModels)
	v.oneOf("vaccine.type", vaccineTypes)
	v.oneOf("random_trial.choice", trialChoices)
	v.oneOf("random_trial.treatment", trialTreatments)
	v.oneOf("agent_zero.interaction_type", Interactions)
	v.oneOf("agent_zero.exposure", exposureNames)
	v.oneOf("partner_tracing.exposure", exposureNames)
	bonds := t.Sub("classes.bond_types")
	for _, ref := range []struct{ feature, path string }{
		{"high_risk", "high_risk.partnership_types"},
		{"partner_tracing", "partner_tracing.bond_type"},
	} {
		feature, path := ref.feature, ref.path
		if !t.Bool("features." + feature) {
			continue
		}
		for _, b := range t.Strings(path) {
			if !bonds.Has(b) {
				v.fail(path, "unknown bond type %q", b)
			}
		}
	}
	if t.Int("calibration.partnership.break_point") < 1 {
		v.fail("calibration.partnership.break_point", "must be at least 1")
	}
	if t.Int("model.time.steps_per_year") < 1 {
		v.fail("model.time.steps_per_year", "must be at least 1")
	}
}

func (v *validator) assortRules() {
	rules := v.t.Sub("assort_mix")
	for _, name := range rules.Keys() {
		path := "assort_mix." + name
		if v.t.String(path+".attribute") == "" {
			v.fail(path+".attribute", "is required")
		}
		values := v.t.Sub(path + ".partner_values")
		if values.Len() == 0 {
			v.fail(path+".partner_values", "at least one value is required")
			continue
		}
		v.weights(path+".partner_values", "")
	}
}

func (v *validator) location() {
	t := v.t
	locations := t.Sub("classes.locations")
	scaling := t.Sub("location.scaling")
	for _, loc := range scaling.Keys() {
		if !locations.Has(loc) {
			v.fail("location.scaling."+loc, "unknown location")
		}
		locScaling := scaling.Child(loc)
		for _, param := range locScaling.Keys() {
			entry := "location.scaling." + loc + "." + param
			if !t.Has(param) {
				v.errs = append(v.errs, &ConfigError{Path: entry, Err: ErrUnknownParam, Reason: fmt.Sprintf("scaled parameter %q not found", param)})
			}
			if f := locScaling.Child(param).String("field"); f != "scalar" && f != "override" {
				v.fail(entry+".field", "%q is not one of scalar, override", f)
			}
		}
	}
	for _, edge := range t.Sub("location.edges").Keys() {
		for _, end := range []string{"location_1", "location_2"} {
			path := "location.edges." + edge + "." + end
			if !locations.Has(t.String(path)) {
				v.fail(path, "unknown location %q", t.String(path))
			}
		}
	}
	if !t.Bool("location.migration.enable") {
		return
	}
	v.oneOf("location.migration.attribute", migrationAttrs)
	values := t.Sub("location.migration.values")
	for _, origin := range values.Keys() {
		v.weights("location.migration.values."+origin, "")
	}
}

func (v *validator) timeline() {
	timeline := v.t.Sub("timeline_scaling.timeline")
	for _, name := range timeline.Keys() {
		path := "timeline_scaling.timeline." + name
		param := v.t.String(path + ".parameter")
		if !v.t.Has(param) {
			v.errs = append(v.errs, &ConfigError{Path: path + ".parameter", Err: ErrUnknownParam, Reason: fmt.Sprintf("scaled parameter %q not found", param)})
		}
	}
}

func (v *validator) outputs() {
	v.subset("outputs.reports", reportNames)
	if v.t.Int("outputs.print_frequency") < 1 {
		v.fail("outputs.print_frequency", "must be at least 1")
	}
}

func (v *validator) enterExit() {
	for _, name := range v.t.Sub("enter_exit.exit").Keys() {
		v.oneOf("enter_exit.exit."+name+".exit_type", exitTypes)
	}
	for _, name := range v.t.Sub("enter_exit.entry").Keys() {
		v.oneOf("enter_exit.entry."+name+".enter_type", enterTypes)
	}
}
