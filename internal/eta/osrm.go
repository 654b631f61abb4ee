package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ride-dispatch/internal/domain/geo"
)

// OSRMClient performs route duration lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// EstimateSeconds queries /route/v1/driving between the points. OSRM takes
// lng,lat order.
func (o *OSRMClient) EstimateSeconds(ctx context.Context, from, to geo.Location) (float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		o.Endpoint, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("osrm no route: %v", out.Code)
	}
	return out.Routes[0].Duration, nil
}
