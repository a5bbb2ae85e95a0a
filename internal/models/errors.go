package models

import "errors"

var (
	ErrModelUnavailable   = errors.New("face detection model unavailable")
	ErrPersistence        = errors.New("face store write failed")
	ErrNotFound           = errors.New("face not found")
	ErrBackup             = errors.New("backup failed")
	ErrRestore            = errors.New("restore failed")
	ErrNoFaceDetected     = errors.New("no face detected in image")
	ErrAmbiguousDetection = errors.New("multiple faces detected in image")
	ErrInvalidSensitivity = errors.New("detection sensitivity out of range")
	ErrInvalidThreshold   = errors.New("recognition threshold out of range")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrInvalidName        = errors.New("face name must not be empty")
	ErrEmptyImage         = errors.New("image is empty")
)
