package solar

import "math"

// NewellCoupling returns the Newell dPhi/dt coupling function for one sample:
//
//	Ec = V^(4/3) * |sin(theta/2)|^(8/3) * BT^(2/3)
//
// with BT = sqrt(By^2 + Bz^2) and clock angle theta = atan2(By, Bz). An exact
// zero Bz is replaced by 0.001 in the angle to keep it defined. Bx does not
// enter the formula. Any NaN input yields NaN.
func NewellCoupling(_, by, bz, v float64) float64 {
	bt := math.Sqrt(by*by + bz*bz)

	bzSafe := bz
	if bzSafe == 0 {
		bzSafe = 0.001
	}
	theta := math.Atan2(by, bzSafe)
	if bt*math.Cos(theta)*bz < 0 {
		theta += math.Pi
	}

	sinHalf := math.Abs(math.Sin(theta / 2))
	return math.Pow(v, 4.0/3.0) * math.Pow(sinHalf, 8.0/3.0) * math.Pow(bt, 2.0/3.0)
}
