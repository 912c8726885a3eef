package interpolation

import (
	"fmt"
	"strings"
)

// Method is the interpolation policy applied between samples.
type Method string

const (
	MethodLinear Method = "linear"
	MethodSmooth Method = "smooth"
	MethodStep   Method = "step"
	MethodNone   Method = "none"
)

// ParseMethod validates a method name. "cubic" is accepted as a synonym of smooth.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodLinear:
		return MethodLinear, nil
	case MethodSmooth, "cubic":
		return MethodSmooth, nil
	case MethodStep:
		return MethodStep, nil
	case MethodNone:
		return MethodNone, nil
	}
	return "", fmt.Errorf("unsupported interpolation method %q", s)
}

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodLinear, MethodSmooth, MethodStep, MethodNone:
		return true
	}
	return false
}

func (m Method) String() string {
	return string(m)
}
