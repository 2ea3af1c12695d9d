package flag

import "flag"

var (
	ServiceName *string
)

func init() {
	ServiceName = flag.String("service", "feedengine", "name of the running service, used to tag logs")
}

func ParseFlags() {
	if !flag.Parsed() {
		flag.Parse()
	}
}
