package normalize

import (
	"math"

	"heart-sound-session-service/internal/service/analysis"
	"heart-sound-session-service/internal/service/risk"
)

// Fallbacks used when the server omits a value or sends one of the wrong type.
const (
	DefaultPrediction      = "unknown"
	DefaultModelID         = "heart-sound-classifier"
	DefaultConfidence      = 0.85
	DefaultHeartRate       = 72
	DefaultSignalQuality   = 0.9
	DefaultSampleRate      = 44100
	DefaultDurationSeconds = 30
)

// numericField is one row of the default table: where to look in the raw
// response, what to use when nothing usable is there, and where it lands.
type numericField struct {
	name  string
	paths []string
	def   float64
	unit  bool // value must lie in [0, 1]
	set   func(*Result, float64)
}

// defaults is the single table of numeric fallbacks. Order matters only for
// readability; every row is independent.
var defaults = []numericField{
	{"confidence", []string{"confidence", "classification.confidence"}, DefaultConfidence, true,
		func(r *Result, v float64) { r.Classification.Confidence = v }},
	{"duration", []string{"features.duration", "audio_features.duration", "duration"}, DefaultDurationSeconds, false,
		func(r *Result, v float64) { r.AudioFeatures.DurationSeconds = v }},
	{"sample_rate", []string{"features.sample_rate", "audio_features.sample_rate", "sample_rate"}, DefaultSampleRate, false,
		func(r *Result, v float64) { r.AudioFeatures.SampleRate = v }},
	{"rms_energy", []string{"features.rms_energy", "audio_features.rms_energy"}, 0.05, false,
		func(r *Result, v float64) { r.AudioFeatures.RMSEnergy = v }},
	{"zero_crossing_rate", []string{"features.zero_crossing_rate", "audio_features.zero_crossing_rate"}, 0.1, false,
		func(r *Result, v float64) { r.AudioFeatures.ZeroCrossingRate = v }},
	{"spectral_centroid", []string{"features.spectral_centroid", "audio_features.spectral_centroid"}, 150, false,
		func(r *Result, v float64) { r.AudioFeatures.SpectralCentroid = v }},
	{"spectral_rolloff", []string{"features.spectral_rolloff", "audio_features.spectral_rolloff"}, 400, false,
		func(r *Result, v float64) { r.AudioFeatures.SpectralRolloff = v }},
	{"spectral_bandwidth", []string{"features.spectral_bandwidth", "audio_features.spectral_bandwidth"}, 200, false,
		func(r *Result, v float64) { r.AudioFeatures.SpectralBandwidth = v }},
	{"heart_rate", []string{"features.heart_rate", "features.tempo", "audio_features.heart_rate", "heart_rate", "tempo"}, DefaultHeartRate, false,
		func(r *Result, v float64) { r.AudioFeatures.HeartRate = v }},
	{"rhythm_regularity", []string{"features.rhythm_regularity", "audio_features.rhythm_regularity"}, 0.85, true,
		func(r *Result, v float64) { r.AudioFeatures.RhythmRegularity = v }},
	{"signal_quality", []string{"features.signal_quality", "audio_features.signal_quality", "signal_quality"}, DefaultSignalQuality, true,
		func(r *Result, v float64) { r.AudioFeatures.SignalQuality = v }},
	{"audio_quality", []string{"quality_metrics.audio_quality", "features.signal_quality", "signal_quality"}, DefaultSignalQuality, true,
		func(r *Result, v float64) { r.QualityMetrics.AudioQuality = v }},
	{"noise_level", []string{"quality_metrics.noise_level", "features.noise_level"}, 0.1, true,
		func(r *Result, v float64) { r.QualityMetrics.NoiseLevel = v }},
	{"snr_estimate", []string{"quality_metrics.snr", "features.snr", "features.snr_estimate"}, 20, false,
		func(r *Result, v float64) { r.QualityMetrics.SNREstimate = v }},
	{"reliability", []string{"quality_metrics.reliability"}, 0.85, true,
		func(r *Result, v float64) { r.QualityMetrics.Reliability = v }},
	{"processing_time", []string{"processing_time", "processing_time_seconds"}, 0, false,
		func(r *Result, v float64) { r.ProcessingTimeSeconds = v }},
}

// Bucket maps a confidence score onto high/medium/low.
func Bucket(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return BucketHigh
	case confidence >= 0.6:
		return BucketMedium
	default:
		return BucketLow
	}
}

// FindingsFor derives finding flags from the prediction label by exact match.
func FindingsFor(label string) Findings {
	f := Findings{AbnormalSounds: label != risk.NormalLabel}
	switch label {
	case "murmur":
		f.MurmurDetected = true
		f.ArrhythmiaDetected = true
	case "extrasystole":
		f.ArrhythmiaDetected = true
	case "extrahls":
		f.ExtraHeartSounds = true
	}
	return f
}

// Normalize maps a raw response onto a fully-populated Result. It never fails:
// a nil or empty response yields a result built entirely from defaults.
func Normalize(raw analysis.RawResponse) Result {
	res := Result{SchemaVersion: SchemaVersion}

	for _, f := range defaults {
		v, ok := raw.Float(f.paths...)
		if !ok || !usable(v, f.unit) {
			v = f.def
		}
		f.set(&res, v)
	}

	res.RequestID, _ = raw.String("request_id", "requestId")
	res.Timestamp, _ = raw.String("timestamp")

	prediction, ok := raw.String("prediction", "predicted_class", "classification.prediction")
	if !ok {
		prediction = DefaultPrediction
	}
	modelID, ok := raw.String("model_version", "model_id", "model", "classification.model_id")
	if !ok {
		modelID = DefaultModelID
	}

	confidence := res.Classification.Confidence
	probabilities, ok := raw.Probabilities("probabilities", "class_probabilities", "classification.probabilities")
	if !ok {
		probabilities = map[string]float64{prediction: confidence}
	}

	bucket := Bucket(confidence)
	hint, _ := raw.String("urgency", "medical_analysis.urgency", "server_urgency")
	assessment := risk.Assess(prediction, confidence, hint)

	res.Classification.Prediction = prediction
	res.Classification.Probabilities = probabilities
	res.Classification.ModelID = modelID
	res.Classification.ConfidenceBucket = bucket
	res.Classification.RiskAssessment = assessment.Level

	res.MedicalAnalysis = MedicalAnalysis{
		Narrative:       risk.Narrative(prediction, res.AudioFeatures.HeartRate, confidence),
		RiskLevel:       assessment.Level,
		Urgency:         assessment.Urgency,
		Recommendation:  assessment.Recommendation,
		Findings:        FindingsFor(prediction),
		ConfidenceScore: confidence,
	}

	res.QualityMetrics.ConfidenceBucket = bucket
	return res
}

func usable(v float64, unit bool) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if unit {
		return v >= 0 && v <= 1
	}
	return v >= 0
}
