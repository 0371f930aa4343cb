package eligibility

import (
	"strconv"

	"donorprep/internal/config"
)

type Query struct {
	Age              *int     `json:"age"`
	Genre            string   `json:"genre"`
	Professions      []string `json:"professions"`
	HealthConditions []string `json:"health_conditions"`
}

func (q Query) empty() bool {
	return (q.Age == nil || *q.Age == 0) && q.Genre == "" && len(q.Professions) == 0 && len(q.HealthConditions) == 0
}

type Prediction struct {
	Score        float64  `json:"score"`
	Outcome      Outcome  `json:"outcome"`
	Insufficient []string `json:"insufficient"`
}

type Entries struct {
	HealthConditions []string `json:"health_conditions"`
	Professions      []string `json:"professions"`
	Genres           []string `json:"genres"`
}

// Predict returns the probability that a person matching q is eligible.
// Without any attribute it is the global eligible share. Otherwise it is the
// product of P(eligible | attribute) over the given attributes, and zero when
// any known health condition is listed.
func (m *Model) Predict(q Query) Prediction {
	out := Prediction{Outcome: OutcomeScored, Insufficient: []string{}}

	if q.empty() {
		if len(m.observations) == 0 {
			out.Outcome = OutcomeInsufficient
			out.Insufficient = append(out.Insufficient, "dataset")
			return out
		}
		out.Score = float64(m.eligible) / float64(len(m.observations))
		return out
	}

	for _, hc := range q.HealthConditions {
		if m.isCriterion(hc) {
			out.Outcome = OutcomeIneligible
			return out
		}
	}

	score := 1.0
	factor := func(label string, match func(observation) bool) {
		eligible, total := 0, 0
		for _, obs := range m.observations {
			if !match(obs) {
				continue
			}
			total++
			if obs.eligible {
				eligible++
			}
		}
		if m.policy == config.ScoringPolicyLegacy {
			score *= float64(orOne(eligible)) / float64(orOne(total))
			return
		}
		if total == 0 {
			out.Insufficient = append(out.Insufficient, label)
			return
		}
		score *= float64(eligible) / float64(total)
	}

	if q.Genre != "" {
		factor("genre:"+q.Genre, func(o observation) bool { return o.genre == q.Genre })
	}
	for _, p := range q.Professions {
		factor("profession:"+p, func(o observation) bool { return o.profession == p })
	}
	if q.Age != nil && *q.Age != 0 {
		age := *q.Age
		factor("age:"+strconv.Itoa(age), func(o observation) bool { return o.age != nil && *o.age == age })
	}

	out.Score = score
	if len(out.Insufficient) > 0 {
		out.Outcome = OutcomeInsufficient
	}
	return out
}

// Entries lists the criterion names and the distinct professions and genres
// in first-seen order.
func (m *Model) Entries() Entries {
	out := Entries{
		HealthConditions: append([]string{}, m.criteria...),
		Professions:      []string{},
		Genres:           []string{},
	}
	seenProfession := map[string]struct{}{}
	seenGenre := map[string]struct{}{}
	for _, obs := range m.observations {
		if _, ok := seenProfession[obs.profession]; !ok && obs.profession != "" {
			seenProfession[obs.profession] = struct{}{}
			out.Professions = append(out.Professions, obs.profession)
		}
		if _, ok := seenGenre[obs.genre]; !ok && obs.genre != "" {
			seenGenre[obs.genre] = struct{}{}
			out.Genres = append(out.Genres, obs.genre)
		}
	}
	return out
}

func (m *Model) isCriterion(name string) bool {
	for _, c := range m.criteria {
		if c == name {
			return true
		}
	}
	return false
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
