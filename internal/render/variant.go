package render

import "github.com/ayusman/kundan/internal/geometry"

// Variant bundles a strategy with the fit options it was tuned for.
type Variant struct {
	Strategy     Strategy
	Aspect       float64
	CenterOffset float64
	Params       Params
}

var variants = map[Strategy]Variant{
	StrategyDirect:    {Strategy: StrategyDirect, Aspect: 0.9, CenterOffset: 0.05},
	StrategyWarp:      {Strategy: StrategyWarp, Aspect: 0.75, CenterOffset: 0.06},
	StrategyGradient:  {Strategy: StrategyGradient, Aspect: 0.7, CenterOffset: 0.06},
	StrategySegmented: {Strategy: StrategySegmented, Aspect: 0.65, CenterOffset: 0.08},
}

// VariantFor returns the tuned variant of s, falling back to segmented.
func VariantFor(s Strategy) Variant {
	v, ok := variants[s]
	if !ok {
		v = variants[StrategySegmented]
	}
	v.Params = DefaultParams()
	return v
}

// WristOptions returns the wrist fit options of the variant.
func (v Variant) WristOptions(mirror bool) geometry.WristOptions {
	return geometry.WristOptions{
		Aspect:       v.Aspect,
		CenterOffset: v.CenterOffset,
		Mirror:       mirror,
	}
}

// Compositor builds a compositor for the variant.
func (v Variant) Compositor() *Compositor {
	return NewCompositor(v.Strategy, v.Params)
}
