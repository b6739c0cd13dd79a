package measure

import "time"

// Result is one completed network measurement. Produced once by the
// runner and never mutated afterward.
type Result struct {
	Download      int64  `json:"download"`
	Upload        int64  `json:"upload"`
	Ping          int64  `json:"ping"`
	Timestamp     string `json:"timestamp"`
	BytesSent     int64  `json:"bytes_sent"`
	BytesReceived int64  `json:"bytes_received"`
	Share         any    `json:"share"`
	Server        Server `json:"server"`
	Client        Client `json:"client"`
}

// Server describes the remote measurement endpoint.
type Server struct {
	URL     string  `json:"url"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	CC      string  `json:"cc"`
	Sponsor string  `json:"sponsor"`
	ID      int64   `json:"id"`
	Host    string  `json:"host"`
	D       float64 `json:"d"`
	Latency int64   `json:"latency"`
}

// Client describes the local measurement endpoint.
type Client struct {
	IP        string  `json:"ip"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	ISP       string  `json:"isp"`
	ISPRating string  `json:"isprating"`
	Rating    int64   `json:"rating"`
	ISPDlAvg  int64   `json:"ispdlavg"`
	ISPUlAvg  int64   `json:"ispulavg"`
	LoggedIn  bool    `json:"loggedin"`
	Country   string  `json:"country"`
}

// Time parses the result's ISO-8601 timestamp.
func (r *Result) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Timestamp)
}
