package igamma

import "fmt"

// Method selects the middle-band approximation of the large regime.
type Method int

const (
	// MethodPolynomial is the normal approximation in η with Temme's
	// correction cut to a quartic.
	MethodPolynomial Method = iota
	// MethodTemme is the full uniform asymptotic expansion with a wider band.
	MethodTemme
)

func (m Method) String() string {
	switch m {
	case MethodPolynomial:
		return "polynomial"
	case MethodTemme:
		return "temme"
	}
	return "unknown"
}

// ParseMethod parses the names returned by Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "polynomial":
		return MethodPolynomial, nil
	case "temme":
		return MethodTemme, nil
	}
	return 0, fmt.Errorf("unknown method %q: must be 'polynomial' or 'temme'", s)
}

type config struct {
	method Method
}

// Option configures an Evaluator.
type Option func(*config)

// WithMethod sets the large-regime middle-band method.
func WithMethod(m Method) Option {
	return func(c *config) {
		c.method = m
	}
}

// WithTemme is shorthand for WithMethod(MethodTemme).
func WithTemme() Option {
	return WithMethod(MethodTemme)
}
