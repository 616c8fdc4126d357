package command

import "testing"

func TestInterpret(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Result
	}{
		{
			name: "plain question passes through",
			text: "what is our current heading",
			want: Result{Kind: Passthrough},
		},
		{
			name: "set humor absolute",
			text: "set humor to 75",
			want: Result{Kind: ToneSet, Value: 75},
		},
		{
			name: "set humor shorthand",
			text: "humor 42",
			want: Result{Kind: ToneSet, Value: 42},
		},
		{
			name: "set humor above range is reported unclamped",
			text: "set humor to 150",
			want: Result{Kind: ToneSet, Value: 150},
		},
		{
			name: "increase humor",
			text: "joke more please",
			want: Result{Kind: ToneAdjust, Value: toneStep},
		},
		{
			name: "be more playful",
			text: "TARS, be more playful",
			want: Result{Kind: ToneAdjust, Value: toneStep},
		},
		{
			name: "decrease humor",
			text: "tone it down a little",
			want: Result{Kind: ToneAdjust, Value: -toneStep},
		},
		{
			name: "more serious",
			text: "be more serious now",
			want: Result{Kind: ToneAdjust, Value: -toneStep},
		},
		{
			name: "absolute set wins over relative phrasing",
			text: "increase humor, set humor to 30",
			want: Result{Kind: ToneSet, Value: 30},
		},
		{
			name: "wormhole travel intent",
			text: "let's jump into the wormhole now",
			want: Result{SceneStage: StageWormhole, Kind: Passthrough},
		},
		{
			name: "wormhole with a space",
			text: "take us through the worm hole",
			want: Result{SceneStage: StageWormhole, Kind: Passthrough},
		},
		{
			name: "black hole travel intent",
			text: "dive into the black hole",
			want: Result{SceneStage: StageBlackHole, Kind: Passthrough},
		},
		{
			name: "bare black hole mention still jumps",
			text: "tell me about the black hole",
			want: Result{SceneStage: StageBlackHole, Kind: Passthrough},
		},
		{
			name: "wormhole takes precedence over black hole",
			text: "is the wormhole near the black hole",
			want: Result{SceneStage: StageWormhole, Kind: Passthrough},
		},
		{
			name: "scene jump combined with tone command",
			text: "enter the wormhole and set humor to 10",
			want: Result{SceneStage: StageWormhole, Kind: ToneSet, Value: 10},
		},
		{
			name: "humor without a number is relative",
			text: "give me more humor",
			want: Result{Kind: ToneAdjust, Value: toneStep},
		},
		{
			name: "empty utterance",
			text: "",
			want: Result{Kind: Passthrough},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Interpret(tc.text); got != tc.want {
				t.Errorf("Interpret(%q) = %+v, want %+v", tc.text, got, tc.want)
			}
		})
	}
}
