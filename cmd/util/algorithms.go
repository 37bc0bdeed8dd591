// Package util contains helpers shared by weir commands.
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ohsu-comp-bio/weir/auction"
	"github.com/ohsu-comp-bio/weir/config"
	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/greedy"
	"github.com/ohsu-comp-bio/weir/online"
	"github.com/ohsu-comp-bio/weir/optimal"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/ohsu-comp-bio/weir/result"
	"github.com/ohsu-comp-bio/weir/solver"
	"github.com/ohsu-comp-bio/weir/solver/bnb"
	"github.com/ohsu-comp-bio/weir/solver/external"
)

// Algorithm is one allocation strategy, named and ready to run on a
// cluster.
type Algorithm interface {
	Name() string
	Run(c *elastic.Cluster) (*result.Result, error)
}

// Policies names the policies an algorithm family is built with.
type Policies struct {
	Priority      string
	Selection     string
	Allocation    string
	Matrix        string
	SpeedRule     string
	Foreknowledge bool
	Seed          uint64
}

// DefaultPolicies returns the policy combination used when flags do
// not say otherwise.
func DefaultPolicies() Policies {
	return Policies{
		Priority:   "value",
		Selection:  "sum-resources",
		Allocation: "sum-percentage",
		Matrix:     "sum-percentage",
		SpeedRule:  "sum-speeds",
	}
}

func (p Policies) resolve() (policy.TaskPriority, policy.ServerSelection, policy.ResourceAllocation, error) {
	ra, err := policy.AllocationByName(p.Allocation)
	if err != nil {
		return nil, nil, nil, err
	}
	pr, err := policy.PriorityByName(p.Priority, p.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	sel, err := policy.SelectionByName(p.Selection, ra, p.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	return pr, sel, ra, nil
}

// NewSolver builds the integer program backend the config names.
func NewSolver(conf config.Solver) (solver.Solver, error) {
	switch conf.Backend {
	case "bnb":
		return bnb.New(), nil
	case "external":
		s := external.New(conf.Command)
		s.WorkDir = conf.WorkDir
		return s, nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", conf.Backend)
	}
}

// AlgorithmNames lists the family names BuildAlgorithm accepts.
func AlgorithmNames() []string {
	return []string{
		"greedy",
		"matrix",
		"critical",
		"iterative",
		"fixed",
		"fixed-greedy",
		"optimal",
		"relaxed",
		"online",
		"online-optimal",
	}
}

// BuildAlgorithm resolves an algorithm family name into a runnable
// strategy using the given config and policy names.
func BuildAlgorithm(name string, conf config.Config, pol Policies) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "greedy":
		p, sel, ra, err := pol.resolve()
		if err != nil {
			return nil, err
		}
		return greedy.New(p, sel, ra), nil

	case "matrix":
		mp, err := greedy.MatrixByName(pol.Matrix)
		if err != nil {
			return nil, err
		}
		return greedy.Matrix(mp), nil

	case "critical":
		p, sel, ra, err := pol.resolve()
		if err != nil {
			return nil, err
		}
		inv, ok := p.(policy.InvertibleTaskPriority)
		if !ok {
			return nil, fmt.Errorf("priority %q cannot price critical values", pol.Priority)
		}
		return auction.NewCritical(inv, sel, ra), nil

	case "iterative":
		ra, err := policy.AllocationByName(pol.Allocation)
		if err != nil {
			return nil, err
		}
		a := auction.NewIterative(ra)
		a.RoundCap = conf.Auction.RoundCap
		return a, nil

	case "fixed":
		rule, err := SpeedRuleByName(pol.SpeedRule)
		if err != nil {
			return nil, err
		}
		sv, err := NewSolver(conf.Solver)
		if err != nil {
			return nil, err
		}
		return &fixedAlgorithm{
			rule:          rule,
			foreknowledge: pol.Foreknowledge,
			inner:         optimal.NewFixed(sv, time.Duration(conf.Solver.TimeLimit)),
		}, nil

	case "fixed-greedy":
		rule, err := SpeedRuleByName(pol.SpeedRule)
		if err != nil {
			return nil, err
		}
		p, sel, _, err := pol.resolve()
		if err != nil {
			return nil, err
		}
		return &fixedAlgorithm{
			rule:          rule,
			foreknowledge: pol.Foreknowledge,
			inner:         greedy.NewFixed(p, sel),
		}, nil

	case "optimal":
		sv, err := NewSolver(conf.Solver)
		if err != nil {
			return nil, err
		}
		return optimal.NewElastic(sv, time.Duration(conf.Solver.TimeLimit)), nil

	case "relaxed":
		sv, err := NewSolver(conf.Solver)
		if err != nil {
			return nil, err
		}
		return optimal.NewServerRelaxed(sv, time.Duration(conf.Solver.TimeLimit)), nil

	case "online":
		p, sel, ra, err := pol.resolve()
		if err != nil {
			return nil, err
		}
		return online.New(greedy.New(p, sel, ra), conf.Online.BatchLength), nil

	case "online-optimal":
		sv, err := NewSolver(conf.Solver)
		if err != nil {
			return nil, err
		}
		inner := optimal.NewElastic(sv, time.Duration(conf.Solver.TimeLimit))
		return online.New(inner, conf.Online.BatchLength), nil

	default:
		return nil, fmt.Errorf("unknown algorithm %q, accepted: %s",
			name, strings.Join(AlgorithmNames(), ", "))
	}
}

// SpeedRuleByName returns the fixed speed rule registered under name.
func SpeedRuleByName(name string) (elastic.SpeedRule, error) {
	switch strings.ToLower(name) {
	case "sum-speeds":
		return elastic.SumSpeeds{}, nil
	case "sum-speeds-pow":
		return elastic.SumSpeedsPow{}, nil
	default:
		return nil, fmt.Errorf("unknown speed rule %q", name)
	}
}

// SpeedRuleNames lists the names SpeedRuleByName accepts.
func SpeedRuleNames() []string {
	return []string{"sum-speeds", "sum-speeds-pow"}
}

// fixedAlgorithm commits every task's speed triple up front, then
// solves the remaining binary assignment. Speeds are fixed on a clone
// so the committed triples do not leak into later runs on the same
// cluster.
type fixedAlgorithm struct {
	rule          elastic.SpeedRule
	foreknowledge bool
	inner         Algorithm
}

func (f *fixedAlgorithm) Name() string {
	name := fmt.Sprintf("%s, %s", f.inner.Name(), f.rule.Name())
	if f.foreknowledge {
		name += ", foreknowledge"
	}
	return name
}

func (f *fixedAlgorithm) Run(c *elastic.Cluster) (*result.Result, error) {
	clone := c.Clone()
	if err := elastic.Fix(clone, f.rule, f.foreknowledge); err != nil {
		return nil, err
	}
	return f.inner.Run(clone)
}
