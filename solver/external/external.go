// Package external shells the binary program out to an LP-file
// solver such as cbc. The problem is rendered to CPLEX LP format in a
// scratch directory, the solver writes a solution file back, and the
// chosen columns are read from it.
package external

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/solver"
)

var log = logger.NewSubLogger("external")

// Solver runs an external solver command per solve. The command is
// invoked cbc-style: problem file, optional "sec" limit, "solve",
// "solution" and the output path. Scratch files are removed after the
// run.
type Solver struct {
	Command string
	WorkDir string
	Log     *logger.Logger
}

func New(command string) *Solver {
	return &Solver{Command: command}
}

func (s *Solver) Name() string {
	return "external " + filepath.Base(s.command())
}

func (s *Solver) command() string {
	if s.Command == "" {
		return "cbc"
	}
	return s.Command
}

func (s *Solver) Solve(ctx context.Context, p *solver.Problem, limit time.Duration) (*solver.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Columns) == 0 {
		return &solver.Solution{ProvenOptimal: true}, nil
	}

	dir, err := os.MkdirTemp(s.WorkDir, "weir-solve-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %v", err)
	}
	defer os.RemoveAll(dir)

	problemPath := filepath.Join(dir, "problem.lp")
	solutionPath := filepath.Join(dir, "solution.sol")
	if err := os.WriteFile(problemPath, []byte(renderLP(p)), 0o644); err != nil {
		return nil, fmt.Errorf("writing problem file: %v", err)
	}

	args := []string{problemPath}
	if limit > 0 {
		seconds := int(limit.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		args = append(args, "sec", strconv.Itoa(seconds))
	}
	args = append(args, "solve", "solution", solutionPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %v: %s", s.command(), err, stderr.String())
	}

	data, err := os.ReadFile(solutionPath)
	if err != nil {
		return nil, fmt.Errorf("reading solution file: %v", err)
	}
	sol, err := parseSolution(data, p)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("solved",
		"command", s.command(),
		"columns", len(p.Columns),
		"chosen", len(sol.Chosen),
		"proven", sol.ProvenOptimal)
	return sol, nil
}

func (s *Solver) logger() *logger.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log
}

// renderLP writes the problem in CPLEX LP format. Column i becomes
// binary variable xi; capacity rows and group rows become <=
// constraints.
func renderLP(p *solver.Problem) string {
	var b strings.Builder
	b.WriteString("Maximize\n obj:")
	for i, col := range p.Columns {
		fmt.Fprintf(&b, " %s%s x%d", sign(i), number(col.Value), i)
	}
	b.WriteString("\nSubject To\n")

	rows := make([][]string, len(p.Capacities))
	for i, col := range p.Columns {
		for _, w := range col.Weights {
			rows[w.Row] = append(rows[w.Row], fmt.Sprintf("%d x%d", w.Amount, i))
		}
	}
	for r, terms := range rows {
		if len(terms) == 0 {
			continue
		}
		fmt.Fprintf(&b, " r%d: %s <= %d\n", r, strings.Join(terms, " + "), p.Capacities[r])
	}

	groups := make([][]string, p.Groups)
	for i, col := range p.Columns {
		groups[col.Group] = append(groups[col.Group], fmt.Sprintf("x%d", i))
	}
	for g, vars := range groups {
		if len(vars) == 0 {
			continue
		}
		fmt.Fprintf(&b, " g%d: %s <= 1\n", g, strings.Join(vars, " + "))
	}

	b.WriteString("Binary\n")
	for i := range p.Columns {
		fmt.Fprintf(&b, " x%d\n", i)
	}
	b.WriteString("End\n")
	return b.String()
}

func sign(i int) string {
	if i == 0 {
		return ""
	}
	return "+ "
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseSolution reads a cbc-style solution file: a status line, then
// one line per nonzero variable. The objective is recomputed from the
// chosen columns rather than trusted from the file, since solvers
// disagree on its sign for maximisation.
func parseSolution(data []byte, p *solver.Problem) (*solver.Solution, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 || !strings.Contains(lines[0], "objective value") {
		return nil, fmt.Errorf("unexpected solution status %q", firstLine(data))
	}

	sol := &solver.Solution{
		ProvenOptimal: strings.HasPrefix(lines[0], "Optimal"),
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.HasPrefix(fields[1], "x") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(fields[1], "x"))
		if err != nil || idx < 0 || idx >= len(p.Columns) {
			return nil, fmt.Errorf("solution names unknown variable %q", fields[1])
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("unreadable value for %q: %v", fields[1], err)
		}
		if value > 0.5 {
			sol.Chosen = append(sol.Chosen, idx)
			sol.Objective += p.Columns[idx].Value
		}
	}
	sort.Ints(sol.Chosen)
	return sol, nil
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}
