package synth

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Wave tables shared by every synth. Tables carry one extra sample equal to
// the first so lookups can interpolate across the wrap without masking.
var (
	chipWaves = buildChipWaves()
	sineWave  = buildSineWave()
	retroWave = lfsrWave(1 << 14)

	chipNoiseWaves = sync.OnceValue(buildChipNoiseWaves)

	spectrumWaves  sync.Map // spectrumKey -> []float64
	harmonicsWaves sync.Map // [song.HarmonicsControlPoints]int -> []float64
	fmRoutines     sync.Map // fmKey -> *fmRoutine
)

// whiteNoiseSeed keeps the white noise table identical between runs.
const whiteNoiseSeed = 0x5eed

func buildChipWaves() [][]float64 {
	waves := make([][]float64, len(song.ChipWaves))
	for i, w := range song.ChipWaves {
		waves[i] = centerAndIntegrate(w.Samples)
	}
	return waves
}

// centerAndIntegrate removes the DC offset of wave and returns its running
// sum. Entry i holds the sum of the samples before i, so the difference of
// two neighbours is the sample between them.
func centerAndIntegrate(wave []float64) []float64 {
	sum := 0.0
	for _, v := range wave {
		sum += v
	}
	average := sum / float64(len(wave))

	integral := make([]float64, len(wave)+1)
	cumulative := 0.0
	for i, v := range wave {
		integral[i] = cumulative
		cumulative += v - average
	}
	integral[len(wave)] = 0
	return integral
}

func buildSineWave() []float64 {
	wave := make([]float64, song.SineWaveLength+1)
	for i := range wave {
		wave[i] = math.Sin(float64(i) * math.Pi * 2.0 / song.SineWaveLength)
	}
	return wave
}

// lfsrWave runs a linear feedback shift register and records its low bit.
func lfsrWave(feedback int) []float64 {
	wave := make([]float64, song.ChipNoiseLength+1)
	buffer := 1
	for i := 0; i < song.ChipNoiseLength; i++ {
		wave[i] = float64(buffer&1)*2.0 - 1.0
		next := buffer >> 1
		if (buffer+next)&1 == 1 {
			next += feedback
		}
		buffer = next
	}
	wave[song.ChipNoiseLength] = wave[0]
	return wave
}

func buildChipNoiseWaves() [][]float64 {
	waves := make([][]float64, len(song.ChipNoises))
	for i := range waves {
		switch i {
		case 0:
			waves[i] = retroWave
		case 1:
			rng := rand.New(rand.NewPCG(whiteNoiseSeed, 0))
			wave := make([]float64, song.ChipNoiseLength+1)
			for j := 0; j < song.ChipNoiseLength; j++ {
				wave[j] = rng.Float64()*2.0 - 1.0
			}
			wave[song.ChipNoiseLength] = wave[0]
			waves[i] = wave
		case 2:
			waves[i] = lfsrWave(2 << 14)
		case 3:
			waves[i] = lfsrWave(10 << 2)
		case 4:
			// Hollow noise is drawn in the frequency domain
			wave := make([]float64, song.ChipNoiseLength+1)
			spectrum := wave[:song.ChipNoiseLength]
			drawNoiseSpectrum(spectrum, 10, 11, 1, 1, 0)
			drawNoiseSpectrum(spectrum, 11, 14, 0.6578, 0.6578, 0)
			dsp.InverseRealFourierTransform(spectrum)
			scale(spectrum, 1.0/math.Sqrt(song.ChipNoiseLength))
			wave[song.ChipNoiseLength] = wave[0]
			waves[i] = wave
		default:
			panic("synth: unknown chip noise")
		}
	}
	return waves
}

// drawNoiseSpectrum adds a band of pseudo-random partials between two
// octaves (relative to the table length) and returns their summed
// amplitude. Partials get a sign from the retro noise and a golden angle
// phase rotation, so redrawing the same spectrum gives the same wave.
func drawNoiseSpectrum(wave []float64, lowOctave, highOctave, lowPower, highPower, overallSlope float64) float64 {
	const referenceOctave = 11
	const referenceIndex = 1 << referenceOctave
	n := len(wave)
	lowIndex := int(math.Pow(2, lowOctave))
	highIndex := min(n>>1, int(math.Pow(2, highOctave)))
	combined := 0.0
	for i := lowIndex; i < highIndex; i++ {
		lerped := lowPower + (highPower-lowPower)*(math.Log2(float64(i))-lowOctave)/(highOctave-lowOctave)
		amplitude := math.Pow(2, (lerped-1)*7+1) * lerped
		amplitude *= math.Pow(float64(i)/referenceIndex, overallSlope)
		combined += amplitude

		amplitude *= retroWave[i]
		radians := 0.61803398875 * float64(i) * float64(i) * math.Pi * 2.0
		wave[i] = math.Cos(radians) * amplitude
		wave[n-i] = math.Sin(radians) * amplitude
	}
	return combined
}

func scale(wave []float64, factor float64) {
	for i := range wave {
		wave[i] *= factor
	}
}

type spectrumKey struct {
	points       [song.SpectrumControlPoints]int
	lowestOctave float64
}

// Control points 2/7 and 4/7 of each octave are nudged to form a major
// third and a fifth.
var spectrumPitchTweak = [song.SpectrumControlPointsPerOct]float64{0, 1.0 / 7, math.Log2(5.0 / 4.0), 3.0 / 7, math.Log2(3.0 / 2.0), 5.0 / 7, 6.0 / 7}

// spectrumWave returns the noise table for a spectrum drawn from
// lowestOctave upwards. Tables are built once per distinct spectrum.
func spectrumWave(w *song.SpectrumWave, lowestOctave float64) []float64 {
	key := spectrumKey{points: w.Points, lowestOctave: lowestOctave}
	if cached, ok := spectrumWaves.Load(key); ok {
		return cached.([]float64)
	}
	wave, _ := spectrumWaves.LoadOrStore(key, buildSpectrumWave(w.Points, lowestOctave))
	return wave.([]float64)
}

func buildSpectrumWave(points [song.SpectrumControlPoints]int, lowestOctave float64) []float64 {
	const highestOctave = 14.0
	const falloffRatio = 0.25
	n := song.SpectrumNoiseLength
	wave := make([]float64, n+1)
	spectrum := wave[:n]

	controlPointToOctave := func(point int) float64 {
		per := song.SpectrumControlPointsPerOct
		return lowestOctave + math.Floor(float64(point)/float64(per)) + spectrumPitchTweak[(point+per)%per]
	}

	combined := 1.0
	for i := 0; i < song.SpectrumControlPoints+1; i++ {
		value1 := 0
		if i > 0 {
			value1 = points[i-1]
		}
		value2 := points[min(i, song.SpectrumControlPoints-1)]
		octave1 := controlPointToOctave(i - 1)
		octave2 := controlPointToOctave(i)
		if i >= song.SpectrumControlPoints {
			octave2 = highestOctave + (octave2-highestOctave)*falloffRatio
		}
		if value1 == 0 && value2 == 0 {
			continue
		}
		combined += 0.02 * drawNoiseSpectrum(spectrum, octave1, octave2, float64(value1)/song.SpectrumMax, float64(value2)/song.SpectrumMax, -0.5)
	}
	if last := points[song.SpectrumControlPoints-1]; last > 0 {
		low := highestOctave + (controlPointToOctave(song.SpectrumControlPoints)-highestOctave)*falloffRatio
		combined += 0.02 * drawNoiseSpectrum(spectrum, low, highestOctave, float64(last)/song.SpectrumMax, 0, -0.5)
	}

	dsp.InverseRealFourierTransform(spectrum)
	scale(spectrum, 5.0/(math.Sqrt(float64(n))*math.Pow(combined, 0.75)))
	wave[n] = wave[0]
	return wave
}

// harmonicsWave returns the integrated single-cycle wave drawn by a set of
// harmonic amplitudes.
func harmonicsWave(w *song.HarmonicsWave) []float64 {
	if cached, ok := harmonicsWaves.Load(w.Points); ok {
		return cached.([]float64)
	}
	wave, _ := harmonicsWaves.LoadOrStore(w.Points, buildHarmonicsWave(w.Points))
	return wave.([]float64)
}

func buildHarmonicsWave(points [song.HarmonicsControlPoints]int) []float64 {
	const overallSlope = -0.25
	n := song.HarmonicsWavelength
	wave := make([]float64, n+1)
	spectrum := wave[:n]

	combined := 1.0
	for h := 0; h < song.HarmonicsRendered; h++ {
		freq := h + 1
		control := float64(points[min(h, song.HarmonicsControlPoints-1)])
		if h >= song.HarmonicsControlPoints {
			control *= 1 - float64(h-song.HarmonicsControlPoints)/float64(song.HarmonicsRendered-song.HarmonicsControlPoints)
		}
		amplitude := math.Pow(2, control-song.HarmonicsMax+1) * math.Sqrt(control/song.HarmonicsMax)
		if h < song.HarmonicsControlPoints {
			combined += amplitude
		}
		amplitude *= math.Pow(float64(freq), overallSlope)
		amplitude *= retroWave[h+589]
		spectrum[n-freq] = amplitude
	}
	dsp.InverseRealFourierTransform(spectrum)

	// Integrate so the chip routine can differentiate it back
	mult := 1 / math.Pow(combined, 0.7)
	cumulative := 0.0
	prev := 0.0
	for i := 0; i < n; i++ {
		cumulative += prev
		prev = wave[i] * mult
		wave[i] = cumulative
	}
	wave[n] = wave[0]
	return wave
}

// drumsetWave returns the noise table of one drumset key.
func drumsetWave(ins *song.Instrument, key int) []float64 {
	return spectrumWave(&ins.Drumset[key].Spectrum, song.DrumsetIndexToSpectrumOctave(key))
}

// spectrumLowestOctave is the octave spectrum instruments are drawn from.
const spectrumLowestOctave = 8

// findRandomZeroCrossing picks a start index in a noise table where the
// wave crosses zero, so notes start without a click.
func findRandomZeroCrossing(rng *rand.Rand, wave []float64) float64 {
	n := len(wave) - 1
	phase := rng.Float64() * float64(n)

	// Spectrum waves are mostly smooth, so stride through and look for a
	// sign change, refining inside the stride that contains it.
	index := int(phase)
	for attempt := 0; attempt < 128; attempt++ {
		nextIndex := (index + 16) & (n - 1)
		if (wave[index] > 0) != (wave[nextIndex] > 0) {
			for i := 0; i < 16; i++ {
				inner := (index + 1) & (n - 1)
				if (wave[index] > 0) != (wave[inner] > 0) {
					// Interpolate the crossing between the two samples
					a, b := wave[index], wave[inner]
					ratio := a / (a - b)
					return float64(index) + ratio
				}
				index = inner
			}
			return float64(index)
		}
		index = nextIndex
	}
	return phase
}
