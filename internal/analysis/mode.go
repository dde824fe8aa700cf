package analysis

import "errors"

// Mode selects which backing model and instruction template an analysis uses.
type Mode string

const (
	ModeDaily Mode = "daily"
	ModePro   Mode = "pro"
)

var ErrUnknownMode = errors.New("unknown analysis mode")

// ModeConfig is one row of the mode table.
type ModeConfig struct {
	Mode        Mode
	ModelID     string
	Instruction string
	StatusLabel string
}

// Daily mode keeps the original's casual retouching coach; pro mode speaks
// as a critique director and answers with a color-grading table.
const (
	dailyInstruction = `你是一位专业的修图大师 BayernGomez。
请从构图、光影、色彩情感等方面分析用户上传的照片。
并给出具体的后期修图参数建议（例如：高光-10，阴影+20，色温变暖）。
如果用户有特殊要求，请优先满足。
`

	proInstruction = `你是国际知名摄影评片导师 BayernGomez，语气专业严格。
请从构图、光影、色彩科学与情绪表达四个维度为这张照片打分（每项10分制），
并输出一张专业调色参数表（色温、色调、曝光、对比度、高光、阴影、白色、黑色、
HSL 分通道），最后给出一条核心改进建议。
如果用户有特殊要求，请优先满足。
`
)

// Modes builds the static mode table for the configured model identifiers.
func Modes(dailyModel, proModel string) map[Mode]ModeConfig {
	return map[Mode]ModeConfig{
		ModeDaily: {
			Mode:        ModeDaily,
			ModelID:     dailyModel,
			Instruction: dailyInstruction,
			StatusLabel: "极速版 - 推荐",
		},
		ModePro: {
			Mode:        ModePro,
			ModelID:     proModel,
			Instruction: proInstruction,
			StatusLabel: "增强版 - 更聪明",
		},
	}
}
