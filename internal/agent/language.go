package agent

// Language holds every user-facing text. Templates use fmt verbs.
type Language struct {
	StartNotice         string `yaml:"start_notice"`
	AlreadyActive       string `yaml:"already_active"`
	StopNotice          string `yaml:"stop_notice"`
	NotActive           string `yaml:"not_active"`
	Cleared             string `yaml:"cleared"`
	TechnicalDifficulty string `yaml:"technical_difficulty"`
	DocumentAdded       string `yaml:"document_added"`
	DocumentKnown       string `yaml:"document_known"`
	DocumentUnsupported string `yaml:"document_unsupported"`
	DocumentTooLarge    string `yaml:"document_too_large"`
	KnowledgeEmpty      string `yaml:"knowledge_empty"`
	KnowledgeHeader     string `yaml:"knowledge_header"`
	NoCode              string `yaml:"no_code"`
	NoTranscript        string `yaml:"no_transcript"`
	NoDescription       string `yaml:"no_description"`
	MediaUnavailable    string `yaml:"media_unavailable"`
	PlanHeader          string `yaml:"plan_header"`
	TopicAnnouncement   string `yaml:"topic_announcement"`
	DiscussionExpired   string `yaml:"discussion_expired"`
	ImageQuestion       string `yaml:"image_question"`
	Help                string `yaml:"help"`
}

func (l Language) withDefaults() Language {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&l.StartNotice, "🚀 بدأ النقاش بين الوكلاء حول أتمتة مهام البحث!\n\nاكتب /stop لإيقاف النقاش")
	set(&l.AlreadyActive, "النقاش يعمل بالفعل. اكتب /stop لإيقافه.")
	set(&l.StopNotice, "⏹ تم إيقاف النقاش. أرسل /start لإعادة البدء.")
	set(&l.NotActive, "لا يوجد نقاش قيد التشغيل. أرسل /start للبدء.")
	set(&l.Cleared, "🧹 تم مسح ذاكرة هذه المحادثة.")
	set(&l.TechnicalDifficulty, "⚠️ عذراً، نواجه صعوبة تقنية حالياً. حاول مرة أخرى بعد قليل.")
	set(&l.DocumentAdded, "📚 تمت إضافة «%s» إلى قاعدة المعرفة.")
	set(&l.DocumentKnown, "📚 المستند «%s» موجود مسبقاً في قاعدة المعرفة.")
	set(&l.DocumentUnsupported, "⚠️ لا يمكن قراءة هذا النوع من الملفات: %s")
	set(&l.DocumentTooLarge, "⚠️ الملف أكبر من الحد المسموح (%d بايت).")
	set(&l.KnowledgeEmpty, "📭 قاعدة المعرفة فارغة. أرسل مستنداً لإضافته.")
	set(&l.KnowledgeHeader, "📚 المستندات المعروفة:")
	set(&l.NoCode, "لم أجد كوداً قابلاً للتنفيذ في الرد، لذلك لم يُنفَّذ شيء.")
	set(&l.NoTranscript, "🎤 لم أتمكن من فهم الرسالة الصوتية.")
	set(&l.NoDescription, "🖼 لم أتمكن من وصف الصورة.")
	set(&l.MediaUnavailable, "⚠️ معالجة الوسائط غير متاحة حالياً.")
	set(&l.PlanHeader, "📋 الخطة:")
	set(&l.TopicAnnouncement, "💡 موضوع جديد للنقاش: %s")
	set(&l.DiscussionExpired, "⏹ انتهى النقاش تلقائياً بعد مدة طويلة. أرسل /start لبدء نقاش جديد.")
	set(&l.ImageQuestion, "صف هذه الصورة بالتفصيل بالعربية.")
	set(&l.Help, "الأوامر المتاحة:\n/start - بدء النقاش بين الوكلاء\n/stop - إيقاف النقاش\n/clear - مسح ذاكرة المحادثة\n/status - حالة البوت والذاكرة\n/knowledge - عرض قاعدة المعرفة\n/help - هذه الرسالة\n\nأرسل سؤالاً أو ملفاً أو رسالة صوتية أو صورة.")
	return l
}
