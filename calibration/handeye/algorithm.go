// Package handeye solves the hand-eye equation A∘X = X∘B for the fixed tool→camera transform X of a
// wrist-mounted camera.
package handeye

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// Motion is the pair of relative motions between samples I and J.
// A = Tool_I⁻¹∘Tool_J is the tool moving, and B = Cam_I∘Cam_J⁻¹ is the same motion seen by the camera.
type Motion struct {
	I, J int
	A    spatialmath.RigidTransform
	B    spatialmath.RigidTransform
}

// Algorithm estimates X from a set of motions. Implementations may assume at least MinSamples samples
// went into the motions, that the rotations are not all about one axis, and that every motion is
// accompanied by its inverse (see BothWays).
type Algorithm interface {
	Name() string
	MinSamples() int
	Solve(motions []Motion) (spatialmath.RigidTransform, error)
}

// DefaultMethod is the algorithm used when none is configured.
const DefaultMethod = "park"

var (
	registryMu sync.RWMutex
	registry   = map[string]Algorithm{}
)

// Register makes an algorithm selectable by name. It panics if the name is taken.
func Register(alg Algorithm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[alg.Name()]; ok {
		panic(fmt.Sprintf("hand-eye algorithm %q already registered", alg.Name()))
	}
	registry[alg.Name()] = alg
}

// Lookup returns the algorithm registered under name.
func Lookup(name string) (Algorithm, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	alg, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown hand-eye method %q, expected one of %v", name, methodsLocked())
	}
	return alg, nil
}

// Methods returns the registered algorithm names in sorted order.
func Methods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return methodsLocked()
}

func methodsLocked() []string {
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}

func init() {
	Register(tsai{})
	Register(park{})
	Register(horaud{})
	Register(andreff{})
	Register(daniilidis{})
}

// Motions pairs every sample with every later one.
func Motions(samples []calibration.PoseSample) []Motion {
	motions := make([]Motion, 0, len(samples)*(len(samples)-1)/2)
	for i := range samples {
		toolInv := samples[i].ToolPose.Inverse()
		for j := i + 1; j < len(samples); j++ {
			motions = append(motions, Motion{
				I: i,
				J: j,
				A: toolInv.Compose(samples[j].ToolPose),
				B: samples[i].FiducialPose.Compose(samples[j].FiducialPose.Inverse()),
			})
		}
	}
	return motions
}

// BothWays returns motions followed by the reverse of each one. A least squares fit over every pair
// in both directions sees the same set of equations however the samples are ordered.
func BothWays(motions []Motion) []Motion {
	out := make([]Motion, 0, 2*len(motions))
	out = append(out, motions...)
	for _, m := range motions {
		out = append(out, Motion{I: m.J, J: m.I, A: m.A.Inverse(), B: m.B.Inverse()})
	}
	return out
}
