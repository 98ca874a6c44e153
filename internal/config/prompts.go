package config

// Built-in prompts. Every one can be overridden under the prompts key.
const (
	DefaultDescriptionPrompt = `React Native ExecuTorch is a declarative way to run AI models in React Native on device, powered by ExecuTorch. It is strictly for mobile devices.

It brings Meta's ExecuTorch framework into the React Native ecosystem so developers can run AI models and LLMs locally on phones, with a declarative API for on-device inference and no cloud infrastructure.

Why it matters:
- Privacy: inference runs on the device, so user data never leaves it.
- Cost: no servers to pay for and lower latency.
- Model variety: LLMs such as Qwen 3, Llama 3.2, SmolLM 2 and Hammer 2.1, CLIP image embeddings, Whisper speech recognition, and computer vision models.
- Developer friendly: no deep AI or native-code expertise needed.

It does NOT support local AI agents. It runs foundation models locally with the inputs they take.

Supported tasks: natural language processing (LLMs, speech to text, text embeddings, tokenizer) and computer vision (classification, image embeddings, segmentation, OCR, object detection, style transfer, vertical OCR).`

	DefaultSearchPrompt = `Search for webpages talking about problems where our product can help. We don't want general webpages talking about ways to advertise, but specific webpages on the specific topic our product solves. DO NOT SEARCH FOR ADVERTISING PLATFORMS.`

	DefaultSelectPagePrompt = `Pick websites to load that are likely to be good places to advertise our product.`

	DefaultDecideLoopPrompt = `Do you want to keep searching (SEARCH) or are the results fine and you want to summarize them (SUMMARIZE)?`

	DefaultCriticIntroduction = `You are a critic judging whether a webpage is a suitable place to advertise our product. We want webpages about problems our product helps with, so we can comment there with an advertisement. We don't want general webpages about ways to advertise, but specific webpages on the topic our product solves. Answer concisely without omitting key points or downsides. WE DON'T WANT ADVERTISING PLATFORMS.`

	DefaultSelectorIntroduction = `You are a selector picking, from a list of webpages and their critiques, the ones that talk about problems our product can help with. The goal is to comment there with an advertisement of the product. We don't want general webpages about ways to advertise, but specific webpages on the topic our product solves. DO NOT SELECT ADVERTISING PLATFORMS.`
)
