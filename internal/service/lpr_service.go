package service

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"
)

// Rekognition rejects inline images larger than this.
const maxImageBytes = 5 << 20

// Indian registration plates, e.g. WB02AB1234 or DL3C1234.
var platePattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{1,4}$`)

type textDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type LPRService struct {
	detector textDetector
	store    repository.Store
	releases *ReleaseService
	log      *zap.Logger
}

func NewLPRService(client *rekognition.Client, store repository.Store, releases *ReleaseService, log *zap.Logger) *LPRService {
	s := &LPRService{store: store, releases: releases, log: log}
	if client != nil {
		s.detector = client
	}
	return s
}

func (s *LPRService) Enabled() bool { return s != nil && s.detector != nil }

// DetectPlate runs text detection on the image and returns the most
// confident text that looks like a registration plate.
func (s *LPRService) DetectPlate(ctx context.Context, image []byte) (string, float32, error) {
	if !s.Enabled() {
		return "", 0, apperror.New(apperror.KindStorage, "plate recognition is not configured")
	}
	out, err := s.detector.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		s.log.Error("rekognition DetectText failed", zap.Error(err))
		return "", 0, apperror.Storage(err, "detect text")
	}

	var (
		plate string
		best  float32
		seen  []string
	)
	for _, d := range out.TextDetections {
		if d.DetectedText == nil || d.Confidence == nil {
			continue
		}
		if d.Type != types.TextTypesLine && d.Type != types.TextTypesWord {
			continue
		}
		txt := NormaliseVehicle(strings.ReplaceAll(*d.DetectedText, ".", ""))
		seen = append(seen, txt)
		if platePattern.MatchString(txt) && *d.Confidence > best {
			plate, best = txt, *d.Confidence
		}
	}
	s.log.Debug("rekognition text", zap.Strings("detected", seen), zap.String("plate", plate))
	if plate == "" {
		return "", 0, apperror.Validation("no licence plate recognised in image")
	}
	return plate, best, nil
}

// ReleaseByPlate recognises a plate in a gate camera image and releases the
// open reservation booked for that vehicle.
func (s *LPRService) ReleaseByPlate(ctx context.Context, id domain.Identity, imageBase64 string) (*domain.PlateReleaseResult, error) {
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(imageBase64))
	if err != nil || len(image) == 0 {
		return nil, apperror.Validation("image must be base64 encoded")
	}
	if len(image) > maxImageBytes {
		return nil, apperror.Validation("image is larger than 5 MB")
	}

	plate, confidence, err := s.DetectPlate(ctx, image)
	if err != nil {
		return nil, err
	}
	res, err := s.store.Reservations().FindOpenByVehicle(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveReservation) {
			return nil, apperror.NotFound("no open reservation for vehicle " + plate)
		}
		return nil, storageErr(err, "find reservation by vehicle")
	}

	released, err := s.releases.Release(ctx, id, res.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PlateReleaseResult{DetectedPlate: plate, Confidence: confidence, Release: *released}, nil
}
