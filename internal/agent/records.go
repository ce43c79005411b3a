package agent

// Each feature and exposure keeps one record per agent. Records expose their
// fields to dotted attribute lookups ("hiv.dx", "prep.type") through attr.

// Record is the state shared by every feature: whether it is active.
type Record struct {
	Active bool `json:"active"`
}

func (r *Record) attr(field string) (any, bool) {
	if field == "active" {
		return r.Active, true
	}
	return nil, false
}

// HIV is the per-agent HIV state.
type HIV struct {
	Active bool `json:"active"`
	Time   int  `json:"time"` // step of conversion
	Dx     bool `json:"dx"`
	DxTime int  `json:"dx_time"`
	AIDS   bool `json:"aids"`
}

func (r *HIV) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "time":
		return r.Time, true
	case "dx":
		return r.Dx, true
	case "dx_time":
		return r.DxTime, true
	case "aids":
		return r.AIDS, true
	}
	return nil, false
}

// MonkeyPox is the per-agent monkeypox state.
type MonkeyPox struct {
	Active bool `json:"active"`
	Time   int  `json:"time"`
	Dx     bool `json:"dx"`
	DxTime int  `json:"dx_time"`
}

func (r *MonkeyPox) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "time":
		return r.Time, true
	case "dx":
		return r.Dx, true
	case "dx_time":
		return r.DxTime, true
	}
	return nil, false
}

// Knowledge tracks awareness (of PrEP, by default) and an opinion score.
type Knowledge struct {
	Active  bool    `json:"active"`
	Time    int     `json:"time"`
	Opinion float64 `json:"opinion"`
}

func (r *Knowledge) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "time":
		return r.Time, true
	case "opinion":
		return r.Opinion, true
	}
	return nil, false
}

// HAART is antiretroviral treatment.
type HAART struct {
	Active   bool `json:"active"`
	Ever     bool `json:"ever"`
	Time     int  `json:"time"`
	Adherent bool `json:"adherent"`
}

func (r *HAART) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "ever":
		return r.Ever, true
	case "time":
		return r.Time, true
	case "adherent":
		return r.Adherent, true
	}
	return nil, false
}

// PrEP is pre-exposure prophylaxis. Load and LastDose apply to injectable
// PrEP only.
type PrEP struct {
	Active   bool    `json:"active"`
	Ever     bool    `json:"ever"`
	Time     int     `json:"time"`
	Adherent bool    `json:"adherent"`
	Type     string  `json:"type"`
	Load     float64 `json:"load"`
	LastDose int     `json:"last_dose"`
}

func (r *PrEP) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "ever":
		return r.Ever, true
	case "time":
		return r.Time, true
	case "adherent":
		return r.Adherent, true
	case "type":
		return r.Type, true
	case "load":
		return r.Load, true
	case "last_dose":
		return r.LastDose, true
	}
	return nil, false
}

// Vaccine is the per-agent vaccination state.
type Vaccine struct {
	Active bool `json:"active"`
	Ever   bool `json:"ever"`
	Time   int  `json:"time"`
}

func (r *Vaccine) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "ever":
		return r.Ever, true
	case "time":
		return r.Time, true
	}
	return nil, false
}

// Incar is the per-agent incarceration state.
type Incar struct {
	Active      bool `json:"active"`
	Ever        bool `json:"ever"`
	Time        int  `json:"time"`
	ReleaseTime int  `json:"release_time"`
}

func (r *Incar) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "ever":
		return r.Ever, true
	case "time":
		return r.Time, true
	case "release_time":
		return r.ReleaseTime, true
	}
	return nil, false
}

// HighRisk is the elevated-partnering state. Time is the step it began;
// Duration counts the remaining steps.
type HighRisk struct {
	Active   bool `json:"active"`
	Ever     bool `json:"ever"`
	Time     int  `json:"time"`
	Duration int  `json:"duration"`
}

func (r *HighRisk) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "ever":
		return r.Ever, true
	case "time":
		return r.Time, true
	case "duration":
		return r.Duration, true
	}
	return nil, false
}

// PartnerTracing marks an agent traced through a diagnosed partner.
type PartnerTracing struct {
	Active bool `json:"active"`
	Time   int  `json:"time"`
}

func (r *PartnerTracing) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "time":
		return r.Time, true
	}
	return nil, false
}

// RandomTrial is membership in a trial arm.
type RandomTrial struct {
	Active   bool `json:"active"`
	Treated  bool `json:"treated"`
	Suitable bool `json:"suitable"`
}

func (r *RandomTrial) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "treated":
		return r.Treated, true
	case "suitable":
		return r.Suitable, true
	}
	return nil, false
}

// ExternalExposure marks agents with partners outside the population.
type ExternalExposure struct {
	Active bool `json:"active"`
	Time   int  `json:"time"`
}

func (r *ExternalExposure) attr(field string) (any, bool) {
	switch field {
	case "active":
		return r.Active, true
	case "time":
		return r.Time, true
	}
	return nil, false
}

type attrRecord interface {
	attr(field string) (any, bool)
}

// record returns the named feature record.
func (a *Agent) record(name string) attrRecord {
	switch name {
	case "hiv":
		return &a.HIV
	case "monkeypox":
		return &a.MonkeyPox
	case "knowledge":
		return &a.Knowledge
	case "haart":
		return &a.HAART
	case "prep":
		return &a.PrEP
	case "vaccine":
		return &a.Vaccine
	case "incar":
		return &a.Incar
	case "high_risk":
		return &a.HighRisk
	case "syringe_services":
		return &a.SyringeServices
	case "partner_tracing":
		return &a.PartnerTracing
	case "random_trial":
		return &a.RandomTrial
	case "msmw":
		return &a.MSMW
	case "external_exposure":
		return &a.ExternalExposure
	}
	return nil
}

// RecordNames lists the feature records in save order.
var RecordNames = []string{
	"hiv", "monkeypox", "knowledge", "haart", "prep", "vaccine", "incar",
	"high_risk", "syringe_services", "partner_tracing", "random_trial", "msmw",
	"external_exposure",
}

// FeatureRecord returns a pointer to the named feature record, or nil for an
// unknown name. Records marshal to JSON by their attribute names.
func (a *Agent) FeatureRecord(name string) any {
	if r := a.record(name); r != nil {
		return r
	}
	return nil
}
