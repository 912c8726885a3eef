package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "barrace/internal/errors"
	"barrace/internal/interpolation"
	"barrace/pkg/contracts/domain"
)

// EngineConfig is the validated configuration of one frame processor.
// Values are immutable in practice: the With* builders return copies.
type EngineConfig struct {
	DateColumn    string               `json:"date_column" yaml:"date_column" validate:"required"`
	ValueColumns  []string             `json:"value_columns" yaml:"value_columns" validate:"required,min=1,unique,dive,required"`
	DateFormat    domain.DateFormat    `json:"date_format" yaml:"date_format" validate:"dateformat"`
	Interpolation interpolation.Method `json:"interpolation" yaml:"interpolation" validate:"interpolation"`
	FPS           int                  `json:"fps" yaml:"fps" validate:"min=1,max=120"`
	TopN          int                  `json:"top_n" yaml:"top_n" validate:"min=1,max=50"`
	// HasHeader is false for input whose first line is data. Columns are
	// then named Date, Column1, Column2 and so on.
	HasHeader     bool                 `json:"has_header" yaml:"has_header"`
}

var engineValidator = newEngineValidator()

func newEngineValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("dateformat", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.SupportedDateFormats, domain.DateFormat(fl.Field().String()))
	})
	v.RegisterValidation("interpolation", func(fl validator.FieldLevel) bool {
		return interpolation.Method(fl.Field().String()).Valid()
	})

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewEngineConfig builds a config with default fps, top N, date format and
// interpolation, and validates it.
func NewEngineConfig(dateColumn string, valueColumns []string) (EngineConfig, error) {
	cfg := EngineConfig{
		DateColumn:    dateColumn,
		ValueColumns:  slices.Clone(valueColumns),
		DateFormat:    domain.DefaultDateFormat,
		Interpolation: interpolation.MethodLinear,
		FPS:           DefaultFPS,
		TopN:          DefaultTopN,
		HasHeader:     true,
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// EngineConfigFromMetadata seeds a config with what the analyzer detected.
func EngineConfigFromMetadata(meta *domain.CSVMetadata, defaults EngineDefaults) (EngineConfig, error) {
	if meta == nil {
		return EngineConfig{}, apperrors.NewInvalidConfigError("metadata is required", nil)
	}
	return EngineOptions{
		DateColumn:   meta.DateColumn,
		ValueColumns: meta.ValueColumns,
		DateFormat:   string(meta.DateFormat),
		HasHeader:    &meta.HasHeader,
	}.Build(defaults)
}

// Validate checks every field once. Failures are INVALID_CONFIG errors.
func (c EngineConfig) Validate() error {
	if err := engineValidator.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		} else {
			fields = append(fields, err.Error())
		}
		return apperrors.NewInvalidConfigError("invalid engine config: "+strings.Join(fields, "; "), err).
			WithContext("fields", fields)
	}
	if slices.Contains(c.ValueColumns, c.DateColumn) {
		return apperrors.NewInvalidConfigError(
			fmt.Sprintf("date column %q cannot also be a value column", c.DateColumn), nil)
	}
	return nil
}

// Key identifies configs that produce identical output for the same input.
func (c EngineConfig) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%t",
		c.DateColumn, strings.Join(c.ValueColumns, ","), c.DateFormat, c.Interpolation, c.FPS, c.TopN, c.HasHeader)
}

// WithFPS returns a copy with fps replaced.
func (c EngineConfig) WithFPS(fps int) EngineConfig {
	out := c.Clone()
	out.FPS = fps
	return out
}

// WithTopN returns a copy with the number of ranked items replaced.
func (c EngineConfig) WithTopN(n int) EngineConfig {
	out := c.Clone()
	out.TopN = n
	return out
}

// WithInterpolation returns a copy with the interpolation method replaced.
func (c EngineConfig) WithInterpolation(m interpolation.Method) EngineConfig {
	out := c.Clone()
	out.Interpolation = m
	return out
}

// WithDateFormat returns a copy with the date format replaced.
func (c EngineConfig) WithDateFormat(f domain.DateFormat) EngineConfig {
	out := c.Clone()
	out.DateFormat = f
	return out
}

// WithHeader returns a copy that expects a header line when hasHeader is true.
func (c EngineConfig) WithHeader(hasHeader bool) EngineConfig {
	out := c.Clone()
	out.HasHeader = hasHeader
	return out
}

// WithColumns returns a copy reading dates from dateColumn and values from
// valueColumns. The slice is copied.
func (c EngineConfig) WithColumns(dateColumn string, valueColumns []string) EngineConfig {
	out := c.Clone()
	out.DateColumn = dateColumn
	out.ValueColumns = slices.Clone(valueColumns)
	return out
}

// Clone returns a deep copy.
func (c EngineConfig) Clone() EngineConfig {
	c.ValueColumns = slices.Clone(c.ValueColumns)
	return c
}

// EngineOptions is the loosely typed form of EngineConfig carried by HTTP
// requests and command line flags. Zero values take the defaults.
type EngineOptions struct {
	DateColumn    string   `json:"date_column" validate:"required"`
	ValueColumns  []string `json:"value_columns" validate:"required,min=1,dive,required"`
	DateFormat    string   `json:"date_format,omitempty" validate:"dateformat"`
	Interpolation string   `json:"interpolation,omitempty" validate:"interpolation"`
	FPS           int      `json:"fps,omitempty" validate:"omitempty,min=1,max=120"`
	TopN          int      `json:"top_n,omitempty" validate:"omitempty,min=1,max=50"`
	// HasHeader defaults to true when omitted.
	HasHeader     *bool    `json:"has_header,omitempty"`
}

// Build resolves the options against defaults and validates the result.
func (o EngineOptions) Build(defaults EngineDefaults) (EngineConfig, error) {
	cfg := EngineConfig{
		DateColumn:    strings.TrimSpace(o.DateColumn),
		ValueColumns:  slices.Clone(o.ValueColumns),
		DateFormat:    domain.DefaultDateFormat,
		Interpolation: interpolation.MethodLinear,
		FPS:           o.FPS,
		TopN:          o.TopN,
		HasHeader:     o.HasHeader == nil || *o.HasHeader,
	}
	if cfg.FPS == 0 {
		cfg.FPS = defaults.FPS
	}
	if cfg.TopN == 0 {
		cfg.TopN = defaults.TopN
	}

	if o.DateFormat != "" {
		f, err := domain.ParseDateFormat(o.DateFormat)
		if err != nil {
			return EngineConfig{}, apperrors.NewInvalidConfigError(err.Error(), err)
		}
		cfg.DateFormat = f
	}

	method := o.Interpolation
	if method == "" {
		method = defaults.Interpolation
	}
	if method != "" {
		m, err := interpolation.ParseMethod(method)
		if err != nil {
			return EngineConfig{}, apperrors.NewInvalidConfigError(err.Error(), err)
		}
		cfg.Interpolation = m
	}

	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}
