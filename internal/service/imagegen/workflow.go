package imagegen

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// Image kinds accepted by the pipeline.
const (
	KindIllustration = "illustration"
	KindInfographic  = "infographic"
	KindPhoto        = "photo"
	KindAnimation    = "animation"
)

// ValidKind reports whether kind names a known workflow template.
func ValidKind(kind string) bool {
	_, ok := workflowTemplates[kind]
	return ok
}

type workflowTemplate struct {
	checkpoint  string
	width       int
	height      int
	steps       int
	cfg         float64
	sampler     string
	stylePrefix string
}

var workflowTemplates = map[string]workflowTemplate{
	KindIllustration: {
		checkpoint:  "sd_xl_base_1.0.safetensors",
		width:       1024,
		height:      1024,
		steps:       30,
		cfg:         7.5,
		sampler:     "euler_ancestral",
		stylePrefix: "digital illustration, editorial style, ",
	},
	KindInfographic: {
		checkpoint:  "sd_xl_base_1.0.safetensors",
		width:       1024,
		height:      1536,
		steps:       30,
		cfg:         7.0,
		sampler:     "euler",
		stylePrefix: "clean infographic, data visualization, minimal design, ",
	},
	KindPhoto: {
		checkpoint:  "sd_xl_base_1.0.safetensors",
		width:       1024,
		height:      768,
		steps:       35,
		cfg:         7.5,
		sampler:     "dpmpp_2m",
		stylePrefix: "photorealistic, editorial photography, ",
	},
	KindAnimation: {
		checkpoint:  "sd_xl_base_1.0.safetensors",
		width:       1024,
		height:      1024,
		steps:       25,
		cfg:         7.0,
		sampler:     "euler_ancestral",
		stylePrefix: "animated style, motion graphics, ",
	},
}

const negativePrompt = "watermark, text, logo, signature, blurry, low quality, " +
	"deformed, ugly, duplicate, mutilated"

// buildWorkflow renders the standard SDXL txt2img graph in ComfyUI API
// format. Both the local and the cloud backend consume the same graph.
func buildWorkflow(prompt, kind string) (map[string]any, string) {
	template, ok := workflowTemplates[kind]
	if !ok {
		template = workflowTemplates[KindIllustration]
	}
	fullPrompt := template.stylePrefix + prompt
	clientID := uuid.NewString()

	graph := map[string]any{
		"3": map[string]any{
			"class_type": "KSampler",
			"inputs": map[string]any{
				"seed":         promptSeed(prompt),
				"steps":        template.steps,
				"cfg":          template.cfg,
				"sampler_name": template.sampler,
				"scheduler":    "normal",
				"denoise":      1.0,
				"model":        []any{"4", 0},
				"positive":     []any{"6", 0},
				"negative":     []any{"7", 0},
				"latent_image": []any{"5", 0},
			},
		},
		"4": map[string]any{
			"class_type": "CheckpointLoaderSimple",
			"inputs":     map[string]any{"ckpt_name": template.checkpoint},
		},
		"5": map[string]any{
			"class_type": "EmptyLatentImage",
			"inputs": map[string]any{
				"width":      template.width,
				"height":     template.height,
				"batch_size": 1,
			},
		},
		"6": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": fullPrompt, "clip": []any{"4", 1}},
		},
		"7": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": negativePrompt, "clip": []any{"4", 1}},
		},
		"8": map[string]any{
			"class_type": "VAEDecode",
			"inputs":     map[string]any{"samples": []any{"3", 0}, "vae": []any{"4", 2}},
		},
		"9": map[string]any{
			"class_type": "SaveImage",
			"inputs": map[string]any{
				"filename_prefix": "newsroom_" + clientID[:8],
				"images":          []any{"8", 0},
			},
		},
	}

	return graph, clientID
}

// promptSeed derives a stable 32-bit seed from the prompt so retries of
// the same prompt reproduce the same image.
func promptSeed(prompt string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return h.Sum32()
}
