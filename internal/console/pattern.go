package console

import "fmt"

const chaseWidth = 8

// Pattern produces the universe sent at a step.
type Pattern func(step int) Universe

// ParsePattern returns the pattern called name.
func ParsePattern(name string) (Pattern, error) {
	switch name {
	case "", "chase":
		return chase, nil
	case "full":
		return fill(255), nil
	case "blackout":
		return fill(0), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", name)
	}
}

// chase moves one full channel over the first slots.
func chase(step int) Universe {
	var u Universe
	u[step%chaseWidth] = 255
	return u
}

func fill(v byte) Pattern {
	return func(int) Universe {
		var u Universe
		for i := range u {
			u[i] = v
		}
		return u
	}
}
