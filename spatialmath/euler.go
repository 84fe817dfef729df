package spatialmath

import (
	"math"

	"github.com/kelvinchow23/robot-system-tools/utils"
)

// EulerAngles are intrinsic Tait-Bryan angles in radians, applied yaw (Z), then pitch (Y),
// then roll (X), so R = Rz(yaw)·Ry(pitch)·Rx(roll).
type EulerAngles struct {
	Roll  float64 `json:"roll" yaml:"roll"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// NewEulerAnglesFromDegrees converts degree inputs at a format boundary.
func NewEulerAnglesFromDegrees(roll, pitch, yaw float64) *EulerAngles {
	return &EulerAngles{Roll: utils.DegToRad(roll), Pitch: utils.DegToRad(pitch), Yaw: utils.DegToRad(yaw)}
}

// Degrees returns roll, pitch and yaw in degrees.
func (ea *EulerAngles) Degrees() [3]float64 {
	return [3]float64{utils.RadToDeg(ea.Roll), utils.RadToDeg(ea.Pitch), utils.RadToDeg(ea.Yaw)}
}

// NewRotationFromEulerAngles builds a rotation matrix from ZYX Euler angles.
func NewRotationFromEulerAngles(ea EulerAngles) (*RotationMatrix, error) {
	if !utils.IsFinite(ea.Roll, ea.Pitch, ea.Yaw) {
		return nil, NewInvalidRotationError("euler angles have non-finite values")
	}
	sr, cr := math.Sincos(ea.Roll)
	sp, cp := math.Sincos(ea.Pitch)
	sy, cy := math.Sincos(ea.Yaw)
	return &RotationMatrix{[9]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	}}, nil
}

// At pitch = ±90° roll and yaw are coupled, so roll is pinned to zero.
func rotationMatrixToEuler(rm *RotationMatrix) *EulerAngles {
	m := rm.mat
	sp := utils.Clamp(-m[6], -1, 1)
	if math.Abs(sp) > 1-1e-12 {
		return &EulerAngles{
			Roll:  0,
			Pitch: math.Copysign(math.Pi/2, sp),
			Yaw:   math.Atan2(-m[1], m[4]),
		}
	}
	return &EulerAngles{
		Roll:  math.Atan2(m[7], m[8]),
		Pitch: math.Asin(sp),
		Yaw:   math.Atan2(m[3], m[0]),
	}
}
