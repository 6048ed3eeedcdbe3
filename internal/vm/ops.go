package vm

// Op is an interpreter opcode. Programs are flat []int32 streams; each opcode
// is followed by its immediate operands.
type Op int32

const (
	OpNop                Op = iota
	OpAttack                // note
	OpAttackTicks           // ticks
	OpArpeggio              // n, offset1 .. offsetN
	OpArpeggioDivider       // divisor
	OpRelease               //
	OpReleaseTicks          // ticks
	OpMute                  //
	OpMuteTicks             // ticks
	OpVolume                // volume
	OpMasterVolume          // volume
	OpPanning               // panning
	OpPitch                 // pitch
	OpWaveform              // waveform
	OpCustomWaveform        // table index, -1 clears
	OpSample                // table index, -1 clears
	OpSampleRepeat          // mode
	OpSampleRange           // start, end
	OpSampleSustainRange    // start, end
	OpSamplePitch           // pitch
	OpSampleReverse         // 1 plays backwards, 0 forwards
	OpDutyCycle             // duty
	OpPhaseWrap             // phases
	OpInstrument            // table index, -1 clears
	OpEffect                // kind, a, b, c
	OpEffectDivider         // divisor
	OpInstrumentDivider     // divisor
	OpStepTicks             // ticks per step
	OpStep                  // steps
	OpTicks                 // ticks
	OpCall                  // address
	OpReturn                //
	OpJump                  // address
	OpRepeat                // address, count
	OpEnd                   //

	numOps
)

// variadic marks an opcode whose first operand counts the ones after it.
const variadic = -1

var opInfo = [numOps]struct {
	name string
	args int
}{
	OpNop:                {"nop", 0},
	OpAttack:             {"attack", 1},
	OpAttackTicks:        {"attack_ticks", 1},
	OpArpeggio:           {"arpeggio", variadic},
	OpArpeggioDivider:    {"arpeggio_divider", 1},
	OpRelease:            {"release", 0},
	OpReleaseTicks:       {"release_ticks", 1},
	OpMute:               {"mute", 0},
	OpMuteTicks:          {"mute_ticks", 1},
	OpVolume:             {"volume", 1},
	OpMasterVolume:       {"master_volume", 1},
	OpPanning:            {"panning", 1},
	OpPitch:              {"pitch", 1},
	OpWaveform:           {"waveform", 1},
	OpCustomWaveform:     {"custom_waveform", 1},
	OpSample:             {"sample", 1},
	OpSampleRepeat:       {"sample_repeat", 1},
	OpSampleRange:        {"sample_range", 2},
	OpSampleSustainRange: {"sample_sustain_range", 2},
	OpSamplePitch:        {"sample_pitch", 1},
	OpSampleReverse:      {"sample_reverse", 1},
	OpDutyCycle:          {"duty_cycle", 1},
	OpPhaseWrap:          {"phase_wrap", 1},
	OpInstrument:         {"instrument", 1},
	OpEffect:             {"effect", 4},
	OpEffectDivider:      {"effect_divider", 1},
	OpInstrumentDivider:  {"instrument_divider", 1},
	OpStepTicks:          {"step_ticks", 1},
	OpStep:               {"step", 1},
	OpTicks:              {"ticks", 1},
	OpCall:               {"call", 1},
	OpReturn:             {"return", 0},
	OpJump:               {"jump", 1},
	OpRepeat:             {"repeat", 2},
	OpEnd:                {"end", 0},
}

func (op Op) String() string {
	if op >= 0 && op < numOps {
		return opInfo[op].name
	}
	return "unknown"
}

// Valid reports whether op is a known opcode.
func (op Op) Valid() bool { return op >= 0 && op < numOps }

// Effect selects the track effect an OpEffect configures.
type Effect int32

const (
	EffectVolumeSlide  Effect = iota // a = steps
	EffectPanningSlide               // a = steps
	EffectPortamento                 // a = steps
	EffectTremolo                    // a = steps, b = delta, c = slide steps
	EffectVibrato                    // a = steps, b = delta, c = slide steps
)

func (e Effect) String() string {
	switch e {
	case EffectVolumeSlide:
		return "volume_slide"
	case EffectPanningSlide:
		return "panning_slide"
	case EffectPortamento:
		return "portamento"
	case EffectTremolo:
		return "tremolo"
	case EffectVibrato:
		return "vibrato"
	}
	return "unknown"
}
