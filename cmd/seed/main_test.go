package main

import "testing"

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		ext     string
		want    map[string]int
		wantErr bool
	}{
		{"yaml", "apple: 3\nbox: 10\n", ".yaml", map[string]int{"apple": 3, "box": 10}, false},
		{"json", `{"apple": 3}`, ".JSON", map[string]int{"apple": 3}, false},
		{"empty", "", ".yml", map[string]int{}, false},
		{"negative", "apple: -1\n", ".yaml", nil, true},
		{"not a number", "apple: many\n", ".yaml", nil, true},
		{"blank name", `{" ": 1}`, ".json", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSeed([]byte(tt.data), tt.ext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSeed error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Got %v, expected %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %d, expected %d", k, got[k], v)
				}
			}
		})
	}
}
