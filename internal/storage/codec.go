package storage

import (
	"encoding/json"
	"errors"

	"neurodrive/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeChampion(rec model.ChampionRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func DecodeChampion(data []byte) (model.ChampionRecord, error) {
	var rec model.ChampionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ChampionRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.ChampionRecord{}, err
	}
	return rec, nil
}

func EncodeGenerationStats(stats []model.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGenerationStats(data []byte) ([]model.GenerationStats, error) {
	var stats []model.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
