// Package query is a thin fact store over github.com/google/mangle's ast and
// factstore packages. It mirrors buffered telemetry into Mangle facts
// (console_event, net_request, net_response, correlation_key) so a single
// tool can pattern-match across predicates instead of the caller having to
// linearly scan each buffer. It deliberately stops at the fact-store/atom
// layer: the event pipelines this bridge serves are push-based, not
// derivation-based, so there is no schema to load and no rule program to
// evaluate.
package query

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"
)

// Fact is a predicate with its positional arguments, the shape every
// telemetry event is mirrored into before it's added to the store.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// Store wraps a Mangle in-memory fact store with typed helpers for adding
// and pattern-matching facts.
type Store struct {
	facts factstore.FactStore
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{facts: factstore.NewSimpleInMemoryStore()}
}

// Add mirrors f into the store as a Mangle atom.
func (s *Store) Add(f Fact) error {
	atom, err := factToAtom(f)
	if err != nil {
		return fmt.Errorf("query: fact to atom: %w", err)
	}
	if !s.facts.Add(atom) {
		return nil // duplicate fact, not an error
	}
	return nil
}

// AddConsoleEvent mirrors a console entry as console_event(level, message, timestampIso).
func (s *Store) AddConsoleEvent(level, message, timestampIso string) error {
	return s.Add(Fact{Predicate: "console_event", Args: []interface{}{level, message, timestampIso}})
}

// AddNetRequest mirrors a request as net_request(id, method, url, timestampIso).
func (s *Store) AddNetRequest(id, method, url, timestampIso string) error {
	return s.Add(Fact{Predicate: "net_request", Args: []interface{}{id, method, url, timestampIso}})
}

// AddNetResponse mirrors a completed response as net_response(id, status, timingMs).
func (s *Store) AddNetResponse(id string, status int, timingMs float64) error {
	return s.Add(Fact{Predicate: "net_response", Args: []interface{}{id, int64(status), timingMs}})
}

// AddCorrelationKey mirrors a correlation key's appearance against the
// event id it was extracted from, as correlation_key(id, key).
func (s *Store) AddCorrelationKey(id, key string) error {
	return s.Add(Fact{Predicate: "correlation_key", Args: []interface{}{id, key}})
}

// Query returns every fact matching predicate, with nil entries in args
// treated as unbound (wildcard) positions. An empty args slice matches on
// predicate name alone, at whatever arity is stored.
func (s *Store) Query(predicate string, args []interface{}) ([]Fact, error) {
	predSym := ast.PredicateSym{Symbol: predicate, Arity: len(args)}

	var pattern ast.Atom
	if len(args) == 0 {
		predSym.Arity = -1
		pattern = ast.Atom{Predicate: predSym}
	} else {
		terms := make([]ast.BaseTerm, len(args))
		for i, a := range args {
			if a == nil {
				terms[i] = ast.Variable{Symbol: fmt.Sprintf("V%d", i)}
				continue
			}
			terms[i] = toConstant(a)
		}
		pattern = ast.Atom{Predicate: predSym, Args: terms}
	}

	var results []Fact
	err := s.facts.GetFacts(pattern, func(atom ast.Atom) error {
		f, err := atomToFact(atom)
		if err != nil {
			return err
		}
		results = append(results, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query: %s: %w", predicate, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return fmt.Sprint(results[i].Args) < fmt.Sprint(results[j].Args)
	})
	return results, nil
}

func factToAtom(f Fact) (ast.Atom, error) {
	predSym := ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)}
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{Predicate: predSym, Args: args}, nil
}

func atomToFact(atom ast.Atom) (Fact, error) {
	args := make([]interface{}, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = convertConstant(arg)
	}
	return Fact{Predicate: atom.Predicate.Symbol, Args: args}, nil
}

func toConstant(v interface{}) ast.BaseTerm {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	case time.Time:
		return ast.String(val.UTC().Format(time.RFC3339Nano))
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func convertConstant(c ast.BaseTerm) interface{} {
	if c == nil {
		return nil
	}
	switch term := c.(type) {
	case ast.Constant:
		switch term.Type {
		case ast.StringType:
			val, _ := term.StringValue()
			return val
		case ast.NumberType:
			return term.NumberValue
		case ast.Float64Type:
			if val, err := term.Float64Value(); err == nil {
				return val
			}
		}
		return term.String()
	case ast.Variable:
		return term.Symbol
	default:
		return fmt.Sprintf("%v", c)
	}
}
