package features

import "github.com/titan-sim/titan/internal/agent"

// MonkeyPox mirrors HIV without AIDS or treatment. It spreads by sex, and
// only while the carrier is in the acute window.
type MonkeyPox struct {
	base
}

func (m *MonkeyPox) StartTime(env *Env) int { return env.Params.Int("monkeypox.start_time") }

func (m *MonkeyPox) Transmits(interaction string) bool { return interaction == "sex" }

func (m *MonkeyPox) Infected(a *agent.Agent) bool  { return a.MonkeyPox.Active }
func (m *MonkeyPox) Diagnosed(a *agent.Agent) bool { return a.MonkeyPox.Dx }
func (m *MonkeyPox) DxTime(a *agent.Agent) int     { return a.MonkeyPox.DxTime }

func (m *MonkeyPox) InitAgent(env *Env, a *agent.Agent) {
	t := env.Time
	if t < m.StartTime(env) || !env.Rand.Bernoulli(demo(env, a, "monkeypox.init")) {
		return
	}
	a.MonkeyPox.Active = true
	a.MonkeyPox.Time = env.Rand.IntRange(t-env.Params.Int("monkeypox.max_init_time"), t)
	if env.Rand.Bernoulli(demo(env, a, "monkeypox.dx.init")) {
		a.MonkeyPox.Dx = true
		a.MonkeyPox.DxTime = env.Rand.IntRange(a.MonkeyPox.Time, t)
	}
}

func (m *MonkeyPox) UpdateAgent(env *Env, a *agent.Agent) {
	if env.Time < m.StartTime(env) || !a.MonkeyPox.Active || a.MonkeyPox.Dx {
		return
	}
	if env.Rand.Bernoulli(demo(env, a, "monkeypox.dx.prob") * env.Params.Float("calibration.test_frequency")) {
		m.Diagnose(env, a)
	}
}

func (m *MonkeyPox) Convert(env *Env, a *agent.Agent) {
	if a.MonkeyPox.Active {
		return
	}
	a.MonkeyPox.Active = true
	a.MonkeyPox.Time = env.Time
}

func (m *MonkeyPox) Diagnose(env *Env, a *agent.Agent) {
	if a.MonkeyPox.Dx {
		return
	}
	a.MonkeyPox.Dx = true
	a.MonkeyPox.DxTime = env.Time
}

// TransmissionProbability is zero outside sex and outside the carrier's
// acute window.
func (m *MonkeyPox) TransmissionProbability(env *Env, interaction string, infected, partner *agent.Agent, numActs int) float64 {
	if interaction != "sex" || env.Time-infected.MonkeyPox.Time > env.Params.Int("monkeypox.acute.duration") {
		return 0
	}
	p := env.Params.Float("monkeypox.transmission.base")
	if infected.MonkeyPox.Dx {
		p *= 1 - env.Params.Float("monkeypox.dx.risk_reduction.sex")
	}
	p *= env.Params.Float("calibration.acquisition")
	return cumulative(p, numActs)
}

func (m *MonkeyPox) Expose(env *Env, interaction string, rel *agent.Relationship, numActs int) error {
	infected, partner, ok := discordant(rel, m.Infected)
	if !ok {
		return nil
	}
	if env.Rand.Bernoulli(m.TransmissionProbability(env, interaction, infected, partner, numActs)) {
		m.Convert(env, partner)
	}
	return nil
}

func (m *MonkeyPox) StatKeys() []string {
	return []string{"monkeypox", "monkeypox_new", "monkeypox_dx", "monkeypox_dx_new"}
}

func (m *MonkeyPox) SetStats(stats map[string]int, a *agent.Agent, t int) {
	if !a.MonkeyPox.Active {
		return
	}
	stats["monkeypox"]++
	inc(stats, "monkeypox_new", a.MonkeyPox.Time == t)
	inc(stats, "monkeypox_dx", a.MonkeyPox.Dx)
	inc(stats, "monkeypox_dx_new", a.MonkeyPox.Dx && a.MonkeyPox.DxTime == t)
}
