package controller

import (
	"fmt"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
	"github.com/nerrad567/flowbench-core/internal/profile"
)

// ValveSpec describes how one valve is actuated.
type ValveSpec struct {
	Name     string
	Servo    bool
	Profile  profile.Kind
	Steps    int
	Interval time.Duration
}

// servoProfiles holds the precomputed opening and closing tables per servo.
type servoProfiles struct {
	open  MotionProfile
	close MotionProfile
}

// ValveSpecs maps the bench section of config.yaml to ValveSpecs.
func ValveSpecs(bench config.BenchConfig) ([]ValveSpec, error) {
	specs := make([]ValveSpec, 0, len(bench.Valves))
	for _, v := range bench.Valves {
		spec := ValveSpec{Name: v.Name}
		if v.Kind == config.ValveKindServo {
			kind, err := profile.ParseKind(v.Profile)
			if err != nil {
				return nil, fmt.Errorf("%w: valve %s: %w", ErrInvalidConfig, v.Name, err)
			}
			spec.Servo = true
			spec.Profile = kind
			spec.Steps = v.ProfileSteps
			spec.Interval = time.Duration(v.IntervalMS) * time.Millisecond
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildProfiles(specs []ValveSpec) (map[string]servoProfiles, error) {
	out := make(map[string]servoProfiles)
	for _, spec := range specs {
		if !spec.Servo {
			continue
		}
		points, err := profile.Generate(spec.Profile, spec.Steps)
		if err != nil {
			return nil, fmt.Errorf("%w: valve %s: %w", ErrInvalidConfig, spec.Name, err)
		}
		intervalMS := int(spec.Interval / time.Millisecond)
		out[spec.Name] = servoProfiles{
			open:  MotionProfile{Kind: spec.Profile, IntervalMS: intervalMS, Points: points},
			close: MotionProfile{Kind: spec.Profile, IntervalMS: intervalMS, Points: profile.Reverse(points)},
		}
	}
	return out, nil
}
