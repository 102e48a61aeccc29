package models

import "testing"

func TestExtendRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ExtendRequest
		wantErr bool
	}{
		{
			name: "valid block mode",
			req:  ExtendRequest{ChannelID: "ch-1", Mode: ExtendModeBlocks, Blocks: 3},
		},
		{
			name: "valid day mode",
			req:  ExtendRequest{ChannelID: "ch-1", Mode: ExtendModeDays, Days: 7},
		},
		{
			name:    "missing channel",
			req:     ExtendRequest{Mode: ExtendModeBlocks, Blocks: 3},
			wantErr: true,
		},
		{
			name:    "zero blocks",
			req:     ExtendRequest{ChannelID: "ch-1", Mode: ExtendModeBlocks, Blocks: 0},
			wantErr: true,
		},
		{
			name:    "negative days",
			req:     ExtendRequest{ChannelID: "ch-1", Mode: ExtendModeDays, Days: -1},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			req:     ExtendRequest{ChannelID: "ch-1", Mode: "weeks", Blocks: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
