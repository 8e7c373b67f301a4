// Package normalize turns raw classification responses into the versioned,
// fully-populated result consumed by the rest of the service.
package normalize

import "heart-sound-session-service/internal/service/risk"

// SchemaVersion is the version of Result.
const SchemaVersion = "2.0"

// Confidence buckets.
const (
	BucketHigh   = "high"
	BucketMedium = "medium"
	BucketLow    = "low"
)

// Result is the normalized analysis result. Every numeric field is always set.
type Result struct {
	SchemaVersion         string          `json:"schema_version"`
	RequestID             string          `json:"request_id"`
	Timestamp             string          `json:"timestamp"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	AudioFeatures         AudioFeatures   `json:"audio_features"`
	Classification        Classification  `json:"classification"`
	MedicalAnalysis       MedicalAnalysis `json:"medical_analysis"`
	QualityMetrics        QualityMetrics  `json:"quality_metrics"`
}

// AudioFeatures holds spectral and temporal measures of the recording.
type AudioFeatures struct {
	DurationSeconds   float64 `json:"duration_seconds"`
	SampleRate        float64 `json:"sample_rate"`
	RMSEnergy         float64 `json:"rms_energy"`
	ZeroCrossingRate  float64 `json:"zero_crossing_rate"`
	SpectralCentroid  float64 `json:"spectral_centroid"`
	SpectralRolloff   float64 `json:"spectral_rolloff"`
	SpectralBandwidth float64 `json:"spectral_bandwidth"`
	HeartRate         float64 `json:"heart_rate"`
	RhythmRegularity  float64 `json:"rhythm_regularity"`
	SignalQuality     float64 `json:"signal_quality"`
}

// Classification is the model output.
type Classification struct {
	Prediction       string             `json:"prediction"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	ModelID          string             `json:"model_id"`
	ConfidenceBucket string             `json:"confidence_bucket"`
	RiskAssessment   risk.Level         `json:"risk_assessment"`
}

// Findings are flags derived from the prediction label.
type Findings struct {
	MurmurDetected     bool `json:"murmur_detected"`
	ArrhythmiaDetected bool `json:"arrhythmia_detected"`
	ExtraHeartSounds   bool `json:"extra_heart_sounds"`
	AbnormalSounds     bool `json:"abnormal_sounds"`
}

// MedicalAnalysis is the clinical interpretation of the classification.
type MedicalAnalysis struct {
	Narrative       string       `json:"narrative"`
	RiskLevel       risk.Level   `json:"risk_level"`
	Urgency         risk.Urgency `json:"urgency"`
	Recommendation  string       `json:"recommendation"`
	Findings        Findings     `json:"findings"`
	ConfidenceScore float64      `json:"confidence_score"`
}

// QualityMetrics describes how trustworthy the recording and result are.
type QualityMetrics struct {
	AudioQuality     float64 `json:"audio_quality"`
	NoiseLevel       float64 `json:"noise_level"`
	SNREstimate      float64 `json:"snr_estimate"`
	Reliability      float64 `json:"reliability"`
	ConfidenceBucket string  `json:"confidence_bucket"`
}
