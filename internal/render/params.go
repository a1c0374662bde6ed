package render

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Strategy selects how a product image is wrapped onto the wrist ellipse.
type Strategy int

const (
	// StrategyDirect draws the image uniformly scaled to the ellipse width.
	StrategyDirect Strategy = iota
	// StrategyWarp scales x and y independently to the ellipse axes.
	StrategyWarp
	// StrategyGradient fades the lower part of the image before warping.
	StrategyGradient
	// StrategySegmented splits the image into front, side and back wedges
	// and shades, compresses and occludes each one.
	StrategySegmented
)

var strategyNames = [...]string{"direct", "warp", "gradient", "segmented"}

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range strategyNames {
		if s == n {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Params tunes the segmented composite. The other strategies ignore it.
type Params struct {
	// FrontThickness boosts the front wedge's vertical scale.
	FrontThickness float64 `json:"front_thickness" validate:"gte=1,lte=1.5"`
	// SideCompression is the horizontal scale of the side wedges.
	SideCompression float64 `json:"side_compression" validate:"gt=0,lte=1"`
	// OcclusionOpacity is the opacity of the back wedge where it peeks out.
	OcclusionOpacity float64 `json:"occlusion_opacity" validate:"gte=0,lte=1"`
	// ShadowIntensity is the peak darkness of the contact shadow.
	ShadowIntensity float64 `json:"shadow_intensity" validate:"gte=0,lte=1"`
	// HighlightIntensity is the additive highlight on the front wedge.
	HighlightIntensity float64 `json:"highlight_intensity" validate:"gte=0,lte=1"`
	// WedgeInnerRadius is the hole of the annulus wedges are cut from, as
	// a fraction of the image half-size.
	WedgeInnerRadius float64 `json:"wedge_inner_radius" validate:"gte=0,lt=1"`
	// WristFootprint scales the ellipse to the region the wrist covers;
	// the back wedge is erased inside it.
	WristFootprint float64 `json:"wrist_footprint" validate:"gt=0,lte=1"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		FrontThickness:     1.08,
		SideCompression:    0.82,
		OcclusionOpacity:   0.35,
		ShadowIntensity:    0.3,
		HighlightIntensity: 0.12,
		WedgeInnerRadius:   0.55,
		WristFootprint:     0.92,
	}
}

// Validate checks every field against its documented range.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
