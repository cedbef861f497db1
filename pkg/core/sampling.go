package core

import (
	"math"
)

// OrthonormalBasis returns two unit tangents that complete n to a right-handed frame
func OrthonormalBasis(n Vec3) (Vec3, Vec3) {
	var nt Vec3
	if math.Abs(n.X) > 0.1 {
		nt = NewVec3(0, 1, 0)
	} else {
		nt = NewVec3(1, 0, 0)
	}
	tangent := nt.Cross(n).Normalize()
	bitangent := n.Cross(tangent)
	return tangent, bitangent
}

// SampleCosineHemisphere generates a cosine-weighted direction in the hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	z := sample.Y
	r := math.Sqrt(z)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	zCoord := math.Sqrt(math.Max(0, 1.0-z))

	tangent, bitangent := OrthonormalBasis(normal)
	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(zCoord))
}

// CosineHemispherePDF is the solid angle density of SampleCosineHemisphere
func CosineHemispherePDF(cosTheta float64) float64 {
	if cosTheta <= 0 {
		return 0
	}
	return cosTheta / math.Pi
}

// SampleOnUnitSphere generates a uniform random direction on the unit sphere
func SampleOnUnitSphere(sample Vec2) Vec3 {
	z := 1.0 - 2.0*sample.X // z ∈ [-1, 1]
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := 2.0 * math.Pi * sample.Y
	return NewVec3(r*math.Cos(phi), r*math.Sin(phi), z)
}

// SampleUniformTriangle maps a unit square sample to barycentric coordinates (b0, b1)
// uniformly distributed over a triangle
func SampleUniformTriangle(sample Vec2) (float64, float64) {
	su := math.Sqrt(sample.X)
	return 1 - su, sample.Y * su
}
