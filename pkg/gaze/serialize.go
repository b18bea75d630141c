package gaze

import (
	"errors"

	"github.com/gazetrack/gazetrack/internal/linalg"
)

// ErrModelImportInvalid is returned by ImportModel when the document is
// missing required weight arrays. Model state is left unchanged.
var ErrModelImportInvalid = errors.New("gaze: model document missing weight arrays")

// RefPoseDoc mirrors ReferencePose in the wire format.
type RefPoseDoc struct {
	Yaw       float64 `json:"yaw"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	FaceScale float64 `json:"faceScale"`
}

// AffineDoc mirrors AffineCorrection in the wire format.
type AffineDoc struct {
	A11 float64 `json:"a11"`
	A12 float64 `json:"a12"`
	Tx  float64 `json:"tx"`
	A21 float64 `json:"a21"`
	A22 float64 `json:"a22"`
	Ty  float64 `json:"ty"`
}

// ModelDocument is the JSON wire format for a trained model (spec §6).
type ModelDocument struct {
	WeightsX     []float64 `json:"weightsX"`
	WeightsY     []float64 `json:"weightsY"`
	FeatureMeans []float64 `json:"featureMeans"`
	FeatureStds  []float64 `json:"featureStds"`
	Lambda       float64   `json:"lambda"`

	DriftOffsetX float64 `json:"driftOffsetX"`
	DriftOffsetY float64 `json:"driftOffsetY"`

	RefPose          *RefPoseDoc `json:"refPose"`
	AffineCorrection *AffineDoc  `json:"affineCorrection"`
}

// ExportModel serialises the current model state. An untrained model
// exports a document with null weight arrays, which ImportModel
// refuses — the round-trip-vs-refusal pairing spec §8 tests for.
func (m *Model) ExportModel() ModelDocument {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := ModelDocument{
		WeightsX: m.wX,
		WeightsY: m.wY,
		Lambda:   m.lambda,

		DriftOffsetX: m.driftX,
		DriftOffsetY: m.driftY,
	}
	if m.norm != nil {
		doc.FeatureMeans = m.norm.Mean
		doc.FeatureStds = m.norm.Std
	}
	if m.trained {
		doc.RefPose = &RefPoseDoc{
			Yaw: m.refPose.Yaw, Pitch: m.refPose.Pitch,
			Roll: m.refPose.Roll, FaceScale: m.refPose.FaceScale,
		}
	}
	if m.hasAffine {
		doc.AffineCorrection = &AffineDoc{
			A11: m.affine.A11, A12: m.affine.A12, Tx: m.affine.Tx,
			A21: m.affine.A21, A22: m.affine.A22, Ty: m.affine.Ty,
		}
	}
	return doc
}

// ImportModel replaces the current weights/normalisation/correction
// state with doc's. It refuses documents with missing weight arrays,
// leaving the model state exactly as it was before the call.
func (m *Model) ImportModel(doc ModelDocument) error {
	if len(doc.WeightsX) == 0 || len(doc.WeightsY) == 0 {
		return ErrModelImportInvalid
	}
	if len(doc.FeatureMeans) == 0 || len(doc.FeatureStds) != len(doc.FeatureMeans) {
		return ErrModelImportInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.wX = append([]float64(nil), doc.WeightsX...)
	m.wY = append([]float64(nil), doc.WeightsY...)
	m.norm = &linalg.Normalizer{Mean: doc.FeatureMeans, Std: doc.FeatureStds}
	m.lambda = doc.Lambda
	m.driftX = doc.DriftOffsetX
	m.driftY = doc.DriftOffsetY

	if doc.RefPose != nil {
		m.refPose = ReferencePose{
			Yaw: doc.RefPose.Yaw, Pitch: doc.RefPose.Pitch,
			Roll: doc.RefPose.Roll, FaceScale: doc.RefPose.FaceScale,
		}
	}
	if doc.AffineCorrection != nil {
		a := doc.AffineCorrection
		m.hasAffine = true
		m.affine = AffineCorrection{A11: a.A11, A12: a.A12, Tx: a.Tx, A21: a.A21, A22: a.A22, Ty: a.Ty}
	} else {
		m.hasAffine = false
		m.affine = AffineCorrection{}
	}

	m.trained = true
	m.history = nil
	return nil
}
