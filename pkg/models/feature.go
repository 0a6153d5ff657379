package models

// FeatureNames is the fixed, stable ordering every model artifact (C4)
// is validated against at load time. Changing this order is a breaking
// change to every serialized artifact.
var FeatureNames = [9]string{
	"request_rate",
	"unique_endpoints",
	"method_ratio",
	"avg_payload_size",
	"error_rate",
	"repeated_parameter_ratio",
	"user_agent_entropy",
	"avg_response_time",
	"max_response_time",
}

// FeatureVector is the nine-dimensional summary of a completed window,
// defined in spec §3.
type FeatureVector struct {
	RequestRate             float64 `json:"request_rate"`
	UniqueEndpoints         float64 `json:"unique_endpoints"`
	MethodRatio             float64 `json:"method_ratio"`
	AvgPayloadSize          float64 `json:"avg_payload_size"`
	ErrorRate               float64 `json:"error_rate"`
	RepeatedParameterRatio  float64 `json:"repeated_parameter_ratio"`
	UserAgentEntropy        float64 `json:"user_agent_entropy"`
	AvgResponseTime         float64 `json:"avg_response_time"`
	MaxResponseTime         float64 `json:"max_response_time"`
}

// Array lays the vector out in FeatureNames order for model inference.
func (f FeatureVector) Array() [9]float64 {
	return [9]float64{
		f.RequestRate,
		f.UniqueEndpoints,
		f.MethodRatio,
		f.AvgPayloadSize,
		f.ErrorRate,
		f.RepeatedParameterRatio,
		f.UserAgentEntropy,
		f.AvgResponseTime,
		f.MaxResponseTime,
	}
}
