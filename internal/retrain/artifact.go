package retrain

import (
	"encoding/json"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

func marshalArtifact(a domain.ModelArtifact) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

func unmarshalArtifact(data []byte) (domain.ModelArtifact, error) {
	var a domain.ModelArtifact
	err := json.Unmarshal(data, &a)
	return a, err
}
