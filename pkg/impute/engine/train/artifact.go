package train

import (
	"encoding/json"
	"fmt"

	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

// SavedModel is the serialized form of one trained model+scaler pair, stored
// as a single JSON blob in the object store. Scaler and network always travel
// together; a model restored with a different scaler would be meaningless.
type SavedModel struct {
	StationID  string        `json:"station_id"`
	Version    int           `json:"version"`
	WindowSize int           `json:"window_size"`
	Scaler     *MinMaxScaler `json:"scaler"`
	Network    *Network      `json:"network"`
}

// ObjectName returns the blob name under which a station's model version is stored.
func ObjectName(stationID string, version int) string {
	return fmt.Sprintf("%s/v%d.json", stationID, version)
}

// Encode serializes the model to JSON.
func (m *SavedModel) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName,
			fmt.Sprintf("failed to encode model for station '%s' version %d", m.StationID, m.Version), err)
	}
	return data, nil
}

// DecodeModel restores a model from its JSON blob.
func DecodeModel(data []byte) (*SavedModel, error) {
	var m SavedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, exception.NewEngineError(exception.KindModelUnavailable, moduleName,
			"failed to decode stored model blob", err)
	}
	if m.Scaler == nil || m.Network == nil {
		return nil, exception.NewEngineError(exception.KindModelUnavailable, moduleName,
			"stored model blob is incomplete", nil)
	}
	return &m, nil
}
