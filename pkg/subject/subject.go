package subject

import (
	"sort"
	"strings"
)

// DefaultThreshold is the minimum confidence for a detected subject to be used.
const DefaultThreshold = 0.3

// Subject is a tutoring subject with the keywords that identify it.
type Subject struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Turn is one user/assistant exchange.
type Turn struct {
	UserMessage string `json:"userMessage"`
	AIResponse  string `json:"aiResponse"`
}

// Detection is the best matching subject for a text.
type Detection struct {
	Subject         Subject  `json:"subject"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

var Subjects = []Subject{
	{
		ID:          "history",
		Name:        "历史",
		Icon:        "📜",
		Description: "评书式讲故事，把历史讲活",
		Keywords:    []string{"秦朝", "皇帝", "战争", "朝代", "历史", "三国", "唐朝", "汉朝", "明朝", "清朝", "革命"},
	},
	{
		ID:          "geography",
		Name:        "地理",
		Icon:        "🌍",
		Description: "游记式探险，探索世界奥秘",
		Keywords:    []string{"地形", "气候", "地理", "国家", "河流", "山脉", "海洋", "城市", "经纬度", "板块"},
	},
	{
		ID:          "biology",
		Name:        "生物",
		Icon:        "🧬",
		Description: "侦探式探索，发现生命奇迹",
		Keywords:    []string{"细胞", "光合作用", "遗传", "生物", "基因", "蛋白质", "DNA", "RNA", "生态系统", "进化"},
	},
	{
		ID:          "chemistry",
		Name:        "化学",
		Icon:        "⚗️",
		Description: "实验演示，见证物质变化",
		Keywords:    []string{"元素", "反应", "分子", "化学", "化合物", "原子", "周期表", "酸", "碱", "盐"},
	},
	{
		ID:          "physics",
		Name:        "物理",
		Icon:        "⚛️",
		Description: "现象解谜，探究自然规律",
		Keywords:    []string{"力", "速度", "能量", "物理", "牛顿", "电", "磁", "光", "声", "热力学", "量子"},
	},
	{
		ID:          "math",
		Name:        "数学",
		Icon:        "📐",
		Description: "逻辑推理，训练思维方法",
		Keywords:    []string{"方程", "几何", "代数", "公式", "数学", "函数", "微积分", "概率", "统计", "数列"},
	},
	{
		ID:          "english",
		Name:        "英语",
		Icon:        "🗣️",
		Description: "对话式练习，提升语言能力",
		Keywords: []string{
			"英语", "English", "单词", "语法", "口语", "发音", "对话",
			"vocabulary", "grammar", "speaking", "listening", "翻译", "时态", "从句",
		},
	},
	{
		ID:          "literature",
		Name:        "文学",
		Icon:        "📖",
		Description: "文本解读，分析作品内涵",
		Keywords: []string{
			"文学", "诗歌", "古诗词", "文言文", "阅读", "作文", "鉴赏",
			"主旨", "修辞", "翻译", "文章", "小说", "散文",
		},
	},
	{
		ID:          "astronomy",
		Name:        "天文学",
		Icon:        "🔭",
		Description: "星空探索，了解宇宙奥秘",
		Keywords: []string{
			"天文", "星星", "行星", "星座", "宇宙", "恒星", "太阳系",
			"月亮", "黑洞", "星系", "观测", "望远镜", "彗星", "流星",
		},
	},
}

// Default is used when nothing matches well enough.
func Default() Subject {
	return Subjects[0]
}

// Get looks a subject up by id, falling back to Default.
func Get(id string) Subject {
	for _, s := range Subjects {
		if s.ID == id {
			return s
		}
	}
	return Default()
}

// DetectText scores every subject by the share of its keywords present in text.
func DetectText(text string) Detection {
	if strings.TrimSpace(text) == "" {
		return Detection{Subject: Default()}
	}

	lower := strings.ToLower(text)
	results := make([]Detection, 0, len(Subjects))
	for _, s := range Subjects {
		var matched []string
		for _, kw := range s.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		d := Detection{Subject: s, MatchedKeywords: matched}
		if len(matched) > 0 {
			d.Confidence = float64(len(matched)) / float64(len(s.Keywords))
		}
		results = append(results, d)
	}

	// 稳定排序，置信度相同时保留表中顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results[0]
}

// DetectTurns runs DetectText over the concatenated conversation.
func DetectTurns(turns []Turn) Detection {
	if len(turns) == 0 {
		return Detection{Subject: Default()}
	}

	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, t.UserMessage+" "+t.AIResponse)
	}
	return DetectText(strings.Join(parts, " "))
}

// Detect returns the detected subject when its confidence reaches threshold, otherwise Default.
func Detect(turns []Turn, threshold float64) Subject {
	d := DetectTurns(turns)
	if d.Confidence >= threshold && d.Confidence > 0 {
		return d.Subject
	}
	return Default()
}
