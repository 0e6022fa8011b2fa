package stats

import (
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/util"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled boolean expression evaluated against single events, for example
//
//	Vehicle == "12" && Fields.importance == "High"
type Filter struct {
	program  *vm.Program
	location *time.Location
}

func filterEnvironment(event ctdf.Event, location *time.Location) map[string]any {
	date := ""
	if event.HasTimestamp() {
		date = util.DateKey(event.OccurredAt, location)
	}

	fields := map[string]string{}
	for key, value := range event.Fields {
		fields[key] = value
	}

	return map[string]any{
		"Type":         string(event.Type),
		"Vehicle":      event.Dimension(),
		"Date":         date,
		"HasTimestamp": event.HasTimestamp(),
		"Fields":       fields,
	}
}

func CompileFilter(code string, location *time.Location) (*Filter, error) {
	if location == nil {
		location = time.UTC
	}

	program, err := expr.Compile(code, expr.Env(filterEnvironment(ctdf.Event{}, location)), expr.AsBool())
	if err != nil {
		return nil, ctdf.NewValidationError("invalid filter: " + err.Error())
	}

	return &Filter{program: program, location: location}, nil
}

func (f *Filter) Match(event ctdf.Event) (bool, error) {
	output, err := expr.Run(f.program, filterEnvironment(event, f.location))
	if err != nil {
		return false, err
	}

	matched, _ := output.(bool)
	return matched, nil
}

// Apply returns the matching events, an evaluation failure on one event is treated as a miss
func (f *Filter) Apply(events []ctdf.Event) []ctdf.Event {
	matching := []ctdf.Event{}
	for _, event := range events {
		if matched, err := f.Match(event); err == nil && matched {
			matching = append(matching, event)
		}
	}

	return matching
}
