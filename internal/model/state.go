package model

import (
	"fmt"
	"slices"

	"github.com/san-kum/lagdyn/internal/nn"
)

// StateDict maps parameter names to their saved values.
type StateDict map[string]nn.VarState

func (m *Model) StateDict() StateDict {
	sd := make(StateDict)
	for _, p := range m.Params() {
		sd[p.Name] = nn.Snapshot(p.Var)
	}
	return sd
}

// LoadStateDict copies sd into the model's parameters. Every parameter must
// be present with a matching shape; nothing is modified on error.
func (m *Model) LoadStateDict(sd StateDict) error {
	ps := m.Params()
	if len(sd) != len(ps) {
		return fmt.Errorf("%w: %d entries for %d parameters", ErrStateDict, len(sd), len(ps))
	}
	for _, p := range ps {
		s, ok := sd[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrStateDict, p.Name)
		}
		if want := p.Var.Shape().Dimensions; !slices.Equal(s.Dims, want) {
			return fmt.Errorf("%w: %s is %v, want %v", ErrStateDict, p.Name, s.Dims, want)
		}
		if _, err := s.Tensor(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStateDict, p.Name, err)
		}
	}
	for _, p := range ps {
		if err := nn.Load(p.Var, sd[p.Name]); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil
}
