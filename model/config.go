package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a LinkConfiguration fails validation.
var ErrInvalidConfig = errors.New("invalid link configuration")

// Alignment modes.
const (
	AlignmentDualLambda     = "dual_lambda"
	AlignmentPilot          = "pilot"
	AlignmentRetroreflector = "retroreflector"
	AlignmentImaging        = "imaging"
)

// LinkConfiguration is the per-evaluation input. It is treated as an
// immutable value; helpers such as WithDistance return modified copies.
type LinkConfiguration struct {
	SchemaVersion string        `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	Global        GlobalConfig  `json:"global" yaml:"global"`
	Channel       ChannelConfig `json:"channel" yaml:"channel"`
}

// GlobalConfig holds link-wide operating parameters.
type GlobalConfig struct {
	BitrateGbps       float64 `json:"bitrate_gbps" yaml:"bitrate_gbps" validate:"gt=0"`
	WavelengthNm      float64 `json:"wavelength_nm" yaml:"wavelength_nm" validate:"gt=0"`
	TargetBER         float64 `json:"target_ber" yaml:"target_ber" validate:"gt=0,lt=1"`
	Weather           string  `json:"weather,omitempty" yaml:"weather,omitempty" validate:"omitempty,oneof=clear haze light_fog moderate_fog rain strong_turbulence"`
	DistanceM         float64 `json:"distance_m" yaml:"distance_m" validate:"gte=0"`
	FECModel          string  `json:"fec_model,omitempty" yaml:"fec_model,omitempty"`
	AlignmentMode     string  `json:"alignment_mode,omitempty" yaml:"alignment_mode,omitempty" validate:"omitempty,oneof=dual_lambda pilot retroreflector imaging"`
	AlignWavelengthNm float64 `json:"align_wavelength_nm,omitempty" yaml:"align_wavelength_nm,omitempty" validate:"gte=0"`
}

// ChannelConfig describes the free-space channel. Attenuation and Cn² are
// pointers so that an unset value (nil) can fall back to the weather
// preset while an explicit 0 stays 0.
type ChannelConfig struct {
	AtmosphericAlphaDbPerKm *float64 `json:"atmospheric_alpha_db_per_km,omitempty" yaml:"atmospheric_alpha_db_per_km,omitempty" validate:"omitempty,gte=0"`
	Cn2                     *float64 `json:"Cn2,omitempty" yaml:"Cn2,omitempty" validate:"omitempty,gte=0"`
	PointingJitterMradRMS   float64  `json:"pointing_jitter_mrad_rms" yaml:"pointing_jitter_mrad_rms" validate:"gte=0"`
	WindMps                 float64  `json:"wind_mps" yaml:"wind_mps" validate:"gte=0"`

	// Two-band angular jitter PSD (mrad²/Hz) split at PSDSplitHz and
	// integrated up to JitterMaxHz.
	PSDLowMrad2Hz  float64 `json:"psd_low_mrad2_Hz,omitempty" yaml:"psd_low_mrad2_Hz,omitempty" validate:"gte=0"`
	PSDHighMrad2Hz float64 `json:"psd_high_mrad2_Hz,omitempty" yaml:"psd_high_mrad2_Hz,omitempty" validate:"gte=0"`
	PSDSplitHz     float64 `json:"psd_split_hz,omitempty" yaml:"psd_split_hz,omitempty" validate:"gte=0"`
	JitterMaxHz    float64 `json:"jitter_max_hz,omitempty" yaml:"jitter_max_hz,omitempty" validate:"omitempty,gtefield=PSDSplitHz"`
}

// WeatherPreset gives default channel values for a named weather state.
type WeatherPreset struct {
	AlphaDbPerKm float64
	Cn2          float64
}

// WeatherPresets are used when the channel leaves attenuation or Cn² unset.
var WeatherPresets = map[string]WeatherPreset{
	"clear":             {AlphaDbPerKm: 0.2, Cn2: 1e-14},
	"haze":              {AlphaDbPerKm: 2, Cn2: 5e-14},
	"light_fog":         {AlphaDbPerKm: 10, Cn2: 1e-14},
	"moderate_fog":      {AlphaDbPerKm: 30, Cn2: 5e-15},
	"rain":              {AlphaDbPerKm: 5, Cn2: 2e-14},
	"strong_turbulence": {AlphaDbPerKm: 0.5, Cn2: 1e-13},
}

// DefaultLinkConfiguration mirrors the interactive tool's start-up state.
func DefaultLinkConfiguration() LinkConfiguration {
	alpha := 0.2
	cn2 := 1e-14
	return LinkConfiguration{
		SchemaVersion: "0.1",
		Global: GlobalConfig{
			BitrateGbps:   1,
			WavelengthNm:  1550,
			TargetBER:     1e-12,
			Weather:       "clear",
			DistanceM:     1000,
			FECModel:      "fec-rs",
			AlignmentMode: AlignmentDualLambda,
		},
		Channel: ChannelConfig{
			AtmosphericAlphaDbPerKm: &alpha,
			Cn2:                     &cn2,
			PointingJitterMradRMS:   0.2,
			WindMps:                 5,
			PSDLowMrad2Hz:           1e-4,
			PSDHighMrad2Hz:          5e-5,
			PSDSplitHz:              100,
			JitterMaxHz:             1000,
		},
	}
}

// AlphaDbPerKm returns the effective atmospheric attenuation coefficient.
func (c LinkConfiguration) AlphaDbPerKm() float64 {
	if c.Channel.AtmosphericAlphaDbPerKm != nil {
		return *c.Channel.AtmosphericAlphaDbPerKm
	}
	return c.preset().AlphaDbPerKm
}

// Cn2 returns the effective refractive-index structure parameter.
func (c LinkConfiguration) Cn2() float64 {
	if c.Channel.Cn2 != nil {
		return *c.Channel.Cn2
	}
	return c.preset().Cn2
}

func (c LinkConfiguration) preset() WeatherPreset {
	if p, ok := WeatherPresets[strings.ToLower(c.Global.Weather)]; ok {
		return p
	}
	return WeatherPresets["clear"]
}

// WithDistance returns a copy evaluated at another range.
func (c LinkConfiguration) WithDistance(m float64) LinkConfiguration {
	c.Global.DistanceM = m
	return c
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration at the API boundary. Evaluation code
// assumes a configuration that passed Validate.
func (c LinkConfiguration) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			problems = append(problems, fmt.Sprintf("%s violates %s (got %v)", fe.Namespace(), rule, fe.Value()))
		}
	}
	for name, v := range c.numericFields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, fmt.Sprintf("%s is not finite", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c LinkConfiguration) numericFields() map[string]float64 {
	out := map[string]float64{
		"global.bitrate_gbps":              c.Global.BitrateGbps,
		"global.wavelength_nm":             c.Global.WavelengthNm,
		"global.target_ber":                c.Global.TargetBER,
		"global.distance_m":                c.Global.DistanceM,
		"global.align_wavelength_nm":       c.Global.AlignWavelengthNm,
		"channel.pointing_jitter_mrad_rms": c.Channel.PointingJitterMradRMS,
		"channel.wind_mps":                 c.Channel.WindMps,
		"channel.psd_low_mrad2_Hz":         c.Channel.PSDLowMrad2Hz,
		"channel.psd_high_mrad2_Hz":        c.Channel.PSDHighMrad2Hz,
		"channel.psd_split_hz":             c.Channel.PSDSplitHz,
		"channel.jitter_max_hz":            c.Channel.JitterMaxHz,
	}
	if c.Channel.AtmosphericAlphaDbPerKm != nil {
		out["channel.atmospheric_alpha_db_per_km"] = *c.Channel.AtmosphericAlphaDbPerKm
	}
	if c.Channel.Cn2 != nil {
		out["channel.Cn2"] = *c.Channel.Cn2
	}
	return out
}
