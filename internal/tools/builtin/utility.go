package builtin

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

func calculate() tools.Definition {
	return tools.Definition{
		Name:        "calculate",
		Description: "Perform mathematical calculations",
		Category:    CategoryUtility,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Schema:      tools.NewSchema(tools.String("expression", "arithmetic expression", tools.Required())),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			expr := args["expression"].(string)
			result, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"expression": expr,
				"result":     result,
			}, nil
		}),
	}
}

func generateRandom() tools.Definition {
	return tools.Definition{
		Name:        "generate_random",
		Description: "Generate random numbers or strings",
		Category:    CategoryUtility,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Schema: tools.NewSchema(
			tools.String("type", "kind of value", tools.Default("number"), tools.OneOf("number", "float", "string")),
			tools.Integer("min_val", "inclusive lower bound", tools.Default(1)),
			tools.Integer("max_val", "inclusive upper bound", tools.Default(100)),
			tools.Integer("length", "string length", tools.Default(10)),
		),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			kind := args["type"].(string)
			lo, hi := args["min_val"].(int), args["max_val"].(int)
			length := args["length"].(int)

			var result any
			switch kind {
			case "number":
				if lo > hi {
					return nil, fmt.Errorf("min_val %d greater than max_val %d", lo, hi)
				}
				result = lo + rand.IntN(hi-lo+1)
			case "float":
				if lo > hi {
					return nil, fmt.Errorf("min_val %d greater than max_val %d", lo, hi)
				}
				result = float64(lo) + rand.Float64()*float64(hi-lo)
			case "string":
				if length < 0 || length > 4096 {
					return nil, fmt.Errorf("length %d outside 0-4096", length)
				}
				b := make([]byte, length)
				for i := range b {
					b[i] = randomAlphabet[rand.IntN(len(randomAlphabet))]
				}
				result = string(b)
			}
			return map[string]any{
				"type":   kind,
				"result": result,
				"parameters": map[string]any{
					"min_val": lo,
					"max_val": hi,
					"length":  length,
				},
			}, nil
		}),
	}
}

func currentTime(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "get_current_time",
		Description: "Get current date and time",
		Category:    CategoryUtility,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Schema: tools.NewSchema(
			tools.String("format", "output format", tools.Default("iso"), tools.OneOf("iso", "unix", "human")),
		),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			format := args["format"].(string)
			now := opts.Now()

			var ts string
			switch format {
			case "unix":
				ts = strconv.FormatInt(now.Unix(), 10)
			case "human":
				ts = now.Format(time.DateTime)
			default:
				ts = now.Format(time.RFC3339)
			}
			zone, _ := now.Zone()
			return map[string]any{
				"timestamp": ts,
				"format":    format,
				"timezone":  zone,
			}, nil
		}),
	}
}
