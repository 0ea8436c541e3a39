package ratelimit

// Uint is the unsigned integer type shared by ticks, units, and capacities.
// The width is fixed here, once, for the whole module; switching to a wider
// or narrower type means changing this single alias.
type Uint = uint64

// maxUint is the saturation ceiling for all limiter arithmetic.
const maxUint = ^Uint(0)

// satAdd returns a+b, clamping at maxUint instead of wrapping.
func satAdd(a, b Uint) Uint {
	s := a + b
	if s < a {
		return maxUint
	}
	return s
}

// satSub returns a-b, clamping at zero instead of wrapping.
func satSub(a, b Uint) Uint {
	if b > a {
		return 0
	}
	return a - b
}

// satMul returns a*b, clamping at maxUint instead of wrapping.
func satMul(a, b Uint) Uint {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/a != b {
		return maxUint
	}
	return p
}

// ceilDiv returns ceil(a/b) without intermediate overflow. b must be > 0.
func ceilDiv(a, b Uint) Uint {
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}
