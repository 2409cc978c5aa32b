package ansible

import (
	"encoding/json"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/pkg/engine"
)

// report is the document written by the json stdout callback.
type report struct {
	Plays []struct {
		Tasks []struct {
			Hosts map[string]map[string]any `json:"hosts"`
		} `json:"tasks"`
	} `json:"plays"`
	Stats map[string]struct {
		Unreachable int `json:"unreachable"`
		Failures    int `json:"failures"`
	} `json:"stats"`
}

func decodeReport(b []byte) (*report, error) {
	var r report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, cerr.Wrap(err, "decoding ansible-playbook output")
	}
	return &r, nil
}

// dispatch reports the result of the last task every host ran to obs under
// the target name. Hosts that were dropped before the task ran are reported
// from the stats; hosts missing from the report are unreachable.
func (r *report) dispatch(hosts []hostAlias, obs engine.Observer) {
	results := make(map[string]map[string]any)
	for _, play := range r.Plays {
		for _, task := range play.Tasks {
			for host, result := range task.Hosts {
				results[host] = result
			}
		}
	}

	for _, h := range hosts {
		result, ran := results[h.alias]
		stats, counted := r.Stats[h.alias]
		switch {
		case ran && truthy(result["unreachable"]):
			obs.OnUnreachable(h.target, result)
		case ran && truthy(result["failed"]):
			obs.OnFailed(h.target, result)
		case ran:
			obs.OnOK(h.target, result)
		case counted && stats.Unreachable > 0:
			obs.OnUnreachable(h.target, map[string]any{"msg": "host unreachable", "unreachable": true})
		case counted && stats.Failures > 0:
			obs.OnFailed(h.target, map[string]any{"msg": "host failed", "failed": true})
		default:
			obs.OnUnreachable(h.target, map[string]any{"msg": "no result reported for host", "unreachable": true})
		}
	}
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
