package domain

import "math"

// NormEpsilon защищает нормализацию от деления на ноль.
const NormEpsilon = 1e-10

// Normalize возвращает L2-нормализованную копию вектора: v / (‖v‖ + ε).
// После нормализации скалярное произведение двух векторов равно косинусной близости.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	scale := 1.0 / (math.Sqrt(sum) + NormEpsilon)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * scale)
	}
	return out
}

// Dot возвращает скалярное произведение векторов одинаковой размерности.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm возвращает L2-норму вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
